// Package inference probes a local Ollama server for its model
// catalog and loaded-model VRAM figures. The probe is best-effort; a
// host without Ollama simply reports the service down.
package inference
