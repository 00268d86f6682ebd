// Package docker polls the Docker daemon for the container inventory
// and determines which containers are entitled to GPU access. A daemon
// outage degrades the cycle to an empty container list instead of
// failing it.
package docker
