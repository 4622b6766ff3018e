package engine

// GetExisting exposes getExisting to the external test package; the tests
// live outside package engine to avoid a test-only import cycle through
// progresskit/adapters/memory.
var GetExisting = (*ProgressionEngine).getExisting
