// Package extern holds the integration surface for everything outside the
// core: error classification sentinels shared by providers and tools, and
// context annotations used by structured logging. Concrete clients live in
// subpackages (llm, asr, tts, mediatool).
package extern
