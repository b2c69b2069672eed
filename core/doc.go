// Package core contains the canonical riskauth domain contracts, stores, and
// lifecycle orchestration. Lower-level adapters must depend on this package;
// core must not depend on authority- or transport-specific adapters.
package core
