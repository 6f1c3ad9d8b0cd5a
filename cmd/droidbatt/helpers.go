package main

import (
	"github.com/fatih/color"

	"github.com/charlie0129/droidbatt/pkg/client"
	"github.com/charlie0129/droidbatt/pkg/version"
)

// apiClient returns a client for the socket given by --daemon-socket.
func apiClient() *client.Client {
	return client.NewClient(unixSocketPath)
}

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient().GetVersion()
	return version.Version, daemonVersion, err
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
