// Package formats parses the binary model formats the importers read: RSM
// models from Ragnarok Online and unencrypted BMD models from MU Online.
package formats
