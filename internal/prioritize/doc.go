// Package prioritize provides the business boundary for Sift's hybrid
// message prioritization. It defines the Engine (LLM scoring with retry and
// fallback, deterministic multipliers, batch orchestration), the Service
// (dedup, lifecycle, async dispatch), the Store interface (persistence), and
// the domain models.
package prioritize
