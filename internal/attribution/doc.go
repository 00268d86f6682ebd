// Package attribution infers which container is responsible for GPU
// memory that the driver reports as in use but cannot tie to any
// visible compute process. Containerized inference runtimes (Ollama
// among them) allocate GPU memory in ways that never show up in the
// driver's process listing, so the per-device delta between reported
// used memory and the visible-process sum has to be distributed
// heuristically.
//
// The distribution is weighted: each GPU-entitled container with no
// visible process gets weight pattern_score(name) * history_factor,
// where the pattern score boosts names that look like inference
// workloads and the history factor biases toward containers whose
// smoothed attribution history is large relative to the current
// unknown pool. A per-device confidence score reflects only the
// ambiguity of the candidate set, never the magnitude involved. When
// no candidate exists the unknown memory stays unattributed at device
// granularity: under-attribution is preferred to mis-attribution.
package attribution
