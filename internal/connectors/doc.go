// Package connectors holds the clients that reach document sources.
// Each subpackage implements a driven port for one provider; google/drive
// implements driven.DriveClient on top of the Drive v3 API.
package connectors
