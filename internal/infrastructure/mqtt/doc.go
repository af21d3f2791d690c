// Package mqtt connects webCamCtrl to an MQTT broker.
//
// The camera bridge (internal/bridges/rs232) takes command requests on
// webcamctrl/command/{name} and publishes acknowledgements, classified
// responses and link health through a Client. BridgeClient adapts the
// client to the bridge's error-free handler signature.
//
// The client owns two retained system topics:
//
//	webcamctrl/system/status  StatusMessage, online or offline
//	webcamctrl/system/scan    preset scan state, published by the caller
//
// Subscriptions are remembered and replayed after a reconnect. The session
// is clean, so commands sent while the service was offline are dropped by
// the broker rather than replayed against the camera.
//
// Use TLS (mqtt.broker.tls) whenever the broker is reachable beyond the
// camera's LAN.
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
//	    Topic:   rs232.HealthTopic(),
//	    Payload: lwt,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
