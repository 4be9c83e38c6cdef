package turnstile

// Dummy secrets and token accepted by siteverify for testing.
//
// https://developers.cloudflare.com/turnstile/troubleshooting/testing/
const (
	SandboxAlwaysPassesSecret = "1x0000000000000000000000000000000AA"
	SandboxAlwaysFailsSecret  = "2x0000000000000000000000000000000AA"
	SandboxTokenSpentSecret   = "3x0000000000000000000000000000000AA"

	SandboxDummyToken = "XXXX.DUMMY.TOKEN.XXXX"
)
