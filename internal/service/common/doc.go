// Package common holds helpers shared by several services.
//
// It assembles the domain collaborators (manifest builder, blob store,
// upload cache) from the loaded configuration so every subcommand wires
// them the same way.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
