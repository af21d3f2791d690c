// Package resources holds the bundled default command catalog.
package resources

import "embed"

// CommandsFile is the name of the bundled catalog inside FS.
const CommandsFile = "commands.csv"

// FS contains the bundled catalog.
//
//go:embed commands.csv
var FS embed.FS
