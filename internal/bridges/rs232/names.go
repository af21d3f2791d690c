package rs232

// Command names understood by the bundled catalog. Names are plain catalog
// keys; any name present in a loaded catalog may be sent.
const (
	CmdIdentifier              = "IDENTIFIER"
	CmdVideoOn                 = "VIDEO_ON"
	CmdVideoOff                = "VIDEO_OFF"
	CmdAutoFocus               = "AUTO_FOCUS"
	CmdManualFocus             = "MANUAL_FOCUS"
	CmdShutterSpeed            = "SHUTTER_SPEED"
	CmdManualWhiteBalance      = "MANUAL_WHITE_BALANCE"
	CmdAutoWhiteBalance        = "AUTO_WHITE_BALANCE"
	CmdInitialParam            = "INITIAL_PARAM"
	CmdPresetStore             = "PRESET_STORE"
	CmdSetPresetPosition       = "SET_PRESET_POSITION"
	CmdReadPresetPosition      = "READ_PRESET_POSITION"
	CmdDocPositionStore        = "DOC_POSITION_STORE"
	CmdSetDocPosition          = "SET_DOC_POSITION"
	CmdReadDocPosition         = "READ_DOC_POSITION"
	CmdPanLeft                 = "PAN_LEFT"
	CmdPanRight                = "PAN_RIGHT"
	CmdTiltUp                  = "TILT_UP"
	CmdTiltDown                = "TILT_DOWN"
	CmdZoomWide                = "ZOOM_WIDE"
	CmdZoomTele                = "ZOOM_TELE"
	CmdFocusFar                = "FOCUS_FAR"
	CmdFocusNear               = "FOCUS_NEAR"
	CmdPresetMove              = "PRESET_MOVE"
	CmdHomePositionDetect      = "HOME_POSITION_DETECT"
	CmdHomePositionMove        = "HOME_POSITION_MOVE"
	CmdDocPositionMove         = "DOC_POSITION_MOVE"
	CmdAbsoluteCoordMove       = "ABSOLUTE_COORD_MOVE"
	CmdRelativeCoordMove       = "RELATIVE_COORD_MOVE"
	CmdPanLeftStart            = "PAN_LEFT_START"
	CmdDirectPanSpeedSetting   = "DIRECT_PAN_SPEED_SETTING"
	CmdPanSpeedIncrease        = "PAN_SPEED_INCREASE"
	CmdPanSpeedDecrease        = "PAN_SPEED_DECREASE"
	CmdDirectTiltSpeedSetting  = "DIRECT_TILT_SPEED_SETTING"
	CmdTiltSpeedIncrease       = "TILT_SPEED_INCREASE"
	CmdTiltSpeedDecrease       = "TILT_SPEED_DECREASE"
	CmdDirectZoomSpeedSetting  = "DIRECT_ZOOM_SPEED_SETTING"
	CmdZoomSpeedIncrease       = "ZOOM_SPEED_INCREASE"
	CmdZoomSpeedDecrease       = "ZOOM_SPEED_DECREASE"
	CmdDirectFocusSpeedSetting = "DIRECT_FOCUS_SPEED_SETTING"
	CmdTiltUpStart             = "TILT_UP_START"
	CmdPanTiltStop             = "PAN_TILT_STOP"
	CmdZoomWideStart           = "ZOOM_WIDE_START"
	CmdZoomTeleStart           = "ZOOM_TELE_START"
	CmdZoomStop                = "ZOOM_STOP"
	CmdPanRightStart           = "PAN_RIGHT_START"
	CmdReadDirectPanSpeed      = "READ_DIRECT_PAN_SPEED"
	CmdReadDirectTiltSpeed     = "READ_DIRECT_TILT_SPEED"
	CmdReadDirectZoomSpeed     = "READ_DIRECT_ZOOM_SPEED"
	CmdReadDirectFocusSpeed    = "READ_DIRECT_FOCUS_SPEED"
	CmdTiltDownStart           = "TILT_DOWN_START"
	CmdCPUSoftwareReset        = "CPU_SOFTWARE_RESET"
	CmdFocusFarStart           = "FOCUS_FAR_START"
	CmdFocusNearStart          = "FOCUS_NEAR_START"
	CmdFocusStop               = "FOCUS_STOP"
	CmdSerialSpeed             = "SERIAL_SPEED"
	CmdBackLightSetting        = "BACK_LIGHT_SETTING"
	CmdWhiteBalanceHold        = "WHITE_BALANCE_HOLD"
	CmdPowerSaveOn             = "POWER_SAVE_ON"
	CmdPowerSaveOff            = "POWER_SAVE_OFF"
	CmdLEDControl              = "LED_CONTROL"
	CmdMotionDetectOnOff       = "MOTION_DETECT_ON_OFF"
	CmdZoomSpeedSetting        = "ZOOM_SPEED_SETTING"
	CmdRemoteControlOnOff      = "REMOTE_CONTROL_ON_OFF"
	CmdPanDirReverse           = "PAN_DIR_REVERSE"
	CmdPanDirNormal            = "PAN_DIR_NORMAL"
	CmdCameraModeChange        = "CAMERA_MODE_CHANGE"
	CmdCustomCode0             = "CUSTOM_CODE_0"
	CmdCustomCode1             = "CUSTOM_CODE_1"
	CmdPanSpeedSetting         = "PAN_SPEED_SETTING"
	CmdTiltSpeedSetting        = "TILT_SPEED_SETTING"
	CmdReadStatusOfMotion      = "READ_STATUS_OF_MOTION"
	CmdReadCameraStatus        = "READ_CAMERA_STATUS"
	CmdReadCustomCode0         = "READ_CUSTOM_CODE_0"
	CmdReadCustomCode1         = "READ_CUSTOM_CODE_1"
	CmdReadAbsoluteCoord       = "READ_ABSOLUTE_COORD"
	CmdReadPreviousCommand     = "READ_PREVIOUS_COMMAND"
	CmdReadBackLight           = "READ_BACK_LIGHT"
	CmdReadWhiteBalance        = "READ_WHITE_BALANCE"
	CmdReadPanTiltSpeed        = "READ_PAN_TILT_SPEED"
	CmdReadZoomSpeed           = "READ_ZOOM_SPEED"
	CmdReadModelName           = "READ_MODEL_NAME"
	CmdReadMotionDetect        = "READ_MOTION_DETECT"
	CmdPresetButton1           = "PRESET_BUTTON_1"
	CmdPresetButton2           = "PRESET_BUTTON_2"
	CmdPresetButton3           = "PRESET_BUTTON_3"
	CmdPresetButton4           = "PRESET_BUTTON_4"
	CmdPresetButton5           = "PRESET_BUTTON_5"
	CmdPresetButton6           = "PRESET_BUTTON_6"
	CmdPresetButton7           = "PRESET_BUTTON_7"
	CmdPresetButton8           = "PRESET_BUTTON_8"
	CmdPresetButton9           = "PRESET_BUTTON_9"
	CmdPresetButton10          = "PRESET_BUTTON_10"
	CmdSetPreset1              = "SET_PRESET_1"
	CmdSetPreset2              = "SET_PRESET_2"
	CmdSetPreset3              = "SET_PRESET_3"
	CmdSetPreset4              = "SET_PRESET_4"
	CmdSetPreset5              = "SET_PRESET_5"
	CmdSetPreset6              = "SET_PRESET_6"
	CmdSetPreset7              = "SET_PRESET_7"
	CmdSetPreset8              = "SET_PRESET_8"
	CmdSetPreset9              = "SET_PRESET_9"
	CmdSetPreset10             = "SET_PRESET_10"
	CmdTVInit                  = "TV_INIT"
	CmdTVInput1                = "TV_INPUT_1"
	CmdTVPowerOn               = "TV_POWER_ON"
	CmdTVPowerOff              = "TV_POWER_OFF"
)
