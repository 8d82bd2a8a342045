// Package docchunk groups documents into capacity-bounded chunks for
// downstream documentation generation. It provides a chunk store with an
// explicit lifecycle state machine, a multi-strategy document-to-chunk
// assignment engine with conflict detection and resolution, and a
// similarity engine backing both.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, fs/).
package docchunk
