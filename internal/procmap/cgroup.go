package procmap

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	// systemd-managed scopes: docker-<id>.scope, cri-containerd-<id>.scope, ...
	scopeCIDRe = regexp.MustCompile(`(?:^|/)(?:docker-|crio-|cri-containerd-|containerd-)([0-9a-fA-F]{12,64})(?:\.scope)?(?:$|/)`)
	// cgroupfs driver: /docker/<id> or /system.slice/docker/<id>.
	plainCIDRe = regexp.MustCompile(`(?:^|/)docker/([0-9a-fA-F]{64})(?:$|/)`)
)

// ParseCgroup extracts a container id from the contents of a
// /proc/<pid>/cgroup file. It understands both the systemd scope
// naming and the plain cgroupfs layout, and handles cgroup v2 files
// (a single "0::" line) as well as v1 multi-controller files. Returns
// "" when no container id is present, which is the normal case for
// host processes.
func ParseCgroup(contents string) string {
	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		path := parts[2]
		if m := scopeCIDRe.FindStringSubmatch(path); len(m) == 2 {
			return strings.ToLower(m[1])
		}
		if m := plainCIDRe.FindStringSubmatch(path); len(m) == 2 {
			return strings.ToLower(m[1])
		}
	}
	return ""
}
