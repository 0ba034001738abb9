package providers

import (
	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/anthropic"
	"github.com/janekbaraniewski/aiusage/internal/providers/antigravity"
	"github.com/janekbaraniewski/aiusage/internal/providers/claude_code"
	"github.com/janekbaraniewski/aiusage/internal/providers/codex"
	"github.com/janekbaraniewski/aiusage/internal/providers/copilot"
	"github.com/janekbaraniewski/aiusage/internal/providers/deepseek"
	"github.com/janekbaraniewski/aiusage/internal/providers/gemini_api"
	"github.com/janekbaraniewski/aiusage/internal/providers/gemini_cli"
	"github.com/janekbaraniewski/aiusage/internal/providers/generic"
	"github.com/janekbaraniewski/aiusage/internal/providers/groq"
	"github.com/janekbaraniewski/aiusage/internal/providers/kimi"
	"github.com/janekbaraniewski/aiusage/internal/providers/mistral"
	"github.com/janekbaraniewski/aiusage/internal/providers/openai"
	"github.com/janekbaraniewski/aiusage/internal/providers/opencode"
	"github.com/janekbaraniewski/aiusage/internal/providers/openrouter"
	"github.com/janekbaraniewski/aiusage/internal/providers/synthetic"
	"github.com/janekbaraniewski/aiusage/internal/providers/xai"
	"github.com/janekbaraniewski/aiusage/internal/providers/zai"
)

// Aliases maps alternative source ids to registered adapters.
var Aliases = map[string]string{
	"claude":          "anthropic",
	"kimi-for-coding": "kimi",
}

// SystemSources are the adapters that read local credentials or processes
// instead of a configured key.
var SystemSources = []string{"antigravity", "gemini-cli", "github-copilot", "codex", "claude-code"}

func AllSources() []core.UsageSource {
	return []core.UsageSource{
		openai.New(),
		anthropic.New(),
		mistral.New(),
		groq.New(),
		xai.New(),
		gemini_api.New(),
		deepseek.New(),
		openrouter.New(),
		opencode.New(),
		opencode.NewZen(),
		kimi.New(),
		zai.New(),
		synthetic.New(),
		copilot.New(),
		gemini_cli.New(),
		antigravity.New(),
		codex.New(),
		claude_code.New(),
	}
}

// Register installs every adapter, the aliases and the generic fallback on e.
func Register(e *core.Engine) {
	for _, s := range AllSources() {
		e.RegisterSource(s)
	}
	for alias, id := range Aliases {
		e.RegisterAlias(alias, id)
	}
	e.SetFallback(generic.New())
}
