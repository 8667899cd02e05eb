// Package deviceinfo collects the environment summary embedded as
// device_info.txt in exported log bundles.
package deviceinfo

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Info describes the host environment at bundle-generation time.
type Info struct {
	AppVersion  string
	BuildType   string
	OS          string
	Arch        string
	Kernel      string
	Hostname    string
	GoVersion   string
	NumCPU      int
	GeneratedAt time.Time
}

// Collect inspects the current process environment.
func Collect(appVersion, buildType string) Info {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Info{
		AppVersion:  appVersion,
		BuildType:   buildType,
		OS:          readOSDescription(),
		Arch:        runtime.GOARCH,
		Kernel:      runCommand("uname", "-sr"),
		Hostname:    hostname,
		GoVersion:   runtime.Version(),
		NumCPU:      runtime.NumCPU(),
		GeneratedAt: time.Now(),
	}
}

// Render produces the device_info.txt body.
func (i Info) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "App Version: %s\n", i.AppVersion)
	fmt.Fprintf(&b, "Build Type: %s\n", i.BuildType)
	fmt.Fprintf(&b, "OS: %s\n", i.OS)
	fmt.Fprintf(&b, "Arch: %s\n", i.Arch)
	fmt.Fprintf(&b, "Kernel: %s\n", i.Kernel)
	fmt.Fprintf(&b, "Hostname: %s\n", i.Hostname)
	fmt.Fprintf(&b, "Go Version: %s\n", i.GoVersion)
	fmt.Fprintf(&b, "CPUs: %d\n", i.NumCPU)
	fmt.Fprintf(&b, "Generated At: %s\n", i.GeneratedAt.Format(time.RFC3339))
	return b.String()
}

func readOSDescription() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return runtime.GOOS
	}
	if desc := parseOSRelease(string(data)); desc != "" {
		return desc
	}
	return runtime.GOOS
}

func parseOSRelease(content string) string {
	var name, version string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "NAME="):
			name = strings.Trim(line[5:], `"`)
		case strings.HasPrefix(line, "VERSION="):
			version = strings.Trim(line[8:], `"`)
		}
	}
	if name != "" && version != "" {
		return fmt.Sprintf("%s %s", name, version)
	}
	return name
}

func runCommand(name string, args ...string) string {
	output, err := exec.Command(name, args...).Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
