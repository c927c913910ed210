package guard

// Rule is one named entry of a pattern table. Pattern uses Go regexp syntax
// and is matched case-insensitively.
type Rule struct {
	Name    string
	Pattern string
}

// DefaultInputRules flag prompt-injection and prompt-exfiltration attempts.
var DefaultInputRules = []Rule{
	{"ignore_instructions", `ignore\s+(?:all\s+|any\s+|the\s+|your\s+)*(?:previous|prior|above|earlier|preceding)\s+(?:instructions?|prompts?|rules|directions)`},
	{"disregard_instructions", `(?:disregard|forget|override)\s+(?:all\s+|any\s+|the\s+|your\s+)*(?:previous\s+|prior\s+|above\s+|earlier\s+)?(?:instructions?|rules|guidelines)`},
	{"reveal_prompt", `(?:reveal|show|print|display|repeat|leak|tell\s+me)\s+(?:me\s+)?(?:your\s+|the\s+)?(?:system|developer|hidden|initial|original)\s+(?:prompt|instructions?|message)s?`},
	{"system_prompt", `system\s+prompt`},
	{"developer_message", `developer\s+(?:mode|message|prompt)`},
	{"jailbreak", `\bjailbreak|\bdan\s+mode\b|do\s+anything\s+now`},
}

// DefaultOutputRules find internal framing or credentials in model output.
var DefaultOutputRules = []Rule{
	{"system_instructions", `system\s+(?:instructions?|prompts?|messages?)`},
	{"developer_prompt", `developer\s+(?:prompts?|messages?|instructions?)`},
	{"prompt_template", `(?:prompt|instruction)\s+template`},
	{"api_key", `api[\s_-]?keys?`},
	{"secret_key", `\bsk-[a-z0-9_-]{16,}`},
	{"bearer_token", `bearer\s+[a-z0-9._~+/-]{16,}=*`},
}

// DefaultWarning is shown instead of an answer when the input gate rejects a query.
const DefaultWarning = "⚠️ Your question looks like an attempt to change how the advisor works, " +
	"so it was not processed. Please ask about courses, careers or job prospects."

// DefaultMarker replaces every redacted phrase.
const DefaultMarker = "[REDACTED]"
