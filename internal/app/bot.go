package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"fragwatch/internal/report"
	kit "fragwatch/internal/transport"
	"fragwatch/internal/transport/telegram"
	logx "fragwatch/pkg/logx"
)

const (
	cbRestricted = "restricted"

	defaultCommandTimeout = 30 * time.Second
	defaultCheckTimeout   = 15 * time.Minute
	defaultRouterWorkers  = 4
)

// RouterConfig tunes update handling. Zero values pick sane defaults.
type RouterConfig struct {
	// CommandTimeout bounds ordinary command handlers.
	CommandTimeout time.Duration
	// CheckTimeout bounds /chk, which runs a full checking pass inline.
	CheckTimeout time.Duration
	Workers      int
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = defaultCheckTimeout
	}
	if c.Workers <= 0 {
		c.Workers = defaultRouterWorkers
	}
	return c
}

// Router consumes transport updates and drives Core operations. Handlers
// run on a small worker pool so one slow /chk does not stall other chats.
type Router struct {
	cfg     RouterConfig
	core    *Core
	adapter kit.Adapter
	log     logx.Logger
}

func NewRouter(cfg RouterConfig, core *Core, adapter kit.Adapter, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{cfg: cfg.withDefaults(), core: core, adapter: adapter, log: log.With(logx.String("comp", "router"))}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	jobs := make(chan kit.Update)

	var wg sync.WaitGroup
	wg.Add(r.cfg.Workers)
	for i := 0; i < r.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for up := range jobs {
				r.handle(ctx, up)
			}
		}()
	}
	r.log.Info("router started", logx.Int("workers", r.cfg.Workers))

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case up, ok := <-updates:
			if !ok {
				break loop
			}
			select {
			case jobs <- up:
			case <-ctx.Done():
				err = ctx.Err()
				break loop
			}
		}
	}
	close(jobs)
	wg.Wait()
	r.log.Info("router stopped")
	return err
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler",
				logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, up.Callback)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	cmd, args := parseCommand(m.Text)
	if cmd == "" {
		return
	}
	log := r.log.With(logx.Int64("user_id", m.FromID), logx.String("cmd", cmd))

	timeout := r.cfg.CommandTimeout
	if cmd == "chk" {
		timeout = r.cfg.CheckTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chat := kit.ChatTarget{ChatID: m.ChatID}
	var err error
	switch cmd {
	case "start", "help":
		err = r.reply(hctx, chat, helpText)
	case "set":
		err = r.cmdSet(hctx, chat, m.FromID, args)
	case "list":
		err = r.cmdList(hctx, chat, m.FromID)
	case "del":
		err = r.cmdDel(hctx, chat, m.FromID, args)
	case "chk":
		err = r.cmdCheck(hctx, chat, m.FromID)
	case "clear":
		err = r.cmdClear(hctx, chat, m.FromID)
	case "notify":
		err = r.cmdNotify(hctx, chat, m.FromID, args)
	default:
		err = r.reply(hctx, chat, "Unknown command. Try /help.")
	}
	if err != nil {
		log.Error("command failed", logx.Err(err))
		_ = r.reply(ctx, chat, "⚠️ Something went wrong, please try again.")
	}
}

const helpText = `👋 I keep an eye on anonymous +888 numbers for you.

/set <numbers> — add numbers to your tracked list
/list — show the tracked list
/del <number> — remove one number
/chk — check all tracked numbers now
/clear — remove every tracked number
/notify on|off — toggle scheduled check notifications
/help — this message

Numbers are accepted with or without the +888 prefix, separated by spaces or commas.`

func (r *Router) cmdSet(ctx context.Context, chat kit.ChatTarget, userID int64, args []string) error {
	if len(args) == 0 {
		return r.reply(ctx, chat, "Usage: /set <number> [number...]")
	}
	res, err := r.core.AddNumbers(ctx, userID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💾 Saved: %d tracked (%d new).", res.Saved, res.Added)
	if n := len(res.Rejected); n > 0 {
		fmt.Fprintf(&b, "\n🚫 Skipped %d invalid: %s", n, strings.Join(res.Rejected, ", "))
	}
	return r.reply(ctx, chat, b.String())
}

func (r *Router) cmdList(ctx context.Context, chat kit.ChatTarget, userID int64) error {
	nums, err := r.core.ListNumbers(ctx, userID)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return r.reply(ctx, chat, "Your tracked list is empty. Add numbers with /set.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Tracked numbers (%d):\n\n", len(nums))
	for i, n := range nums {
		fmt.Fprintf(&b, "%d. +%s\n", i+1, n)
	}
	return r.reply(ctx, chat, b.String())
}

func (r *Router) cmdDel(ctx context.Context, chat kit.ChatTarget, userID int64, args []string) error {
	if len(args) != 1 {
		return r.reply(ctx, chat, "Usage: /del <number>")
	}
	removed, err := r.core.RemoveNumber(ctx, userID, args[0])
	if err != nil {
		return err
	}
	if !removed {
		return r.reply(ctx, chat, "That number is not in your list.")
	}
	return r.reply(ctx, chat, "🗑 Removed.")
}

func (r *Router) cmdCheck(ctx context.Context, chat kit.ChatTarget, userID int64) error {
	nums, err := r.core.ListNumbers(ctx, userID)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return r.reply(ctx, chat, "Your tracked list is empty. Add numbers with /set.")
	}

	ref, err := r.adapter.SendText(ctx, chat,
		fmt.Sprintf("⏳ Checking %d numbers, this can take a while…", len(nums)), nil)
	if err != nil {
		return err
	}

	res, err := r.core.CheckNow(ctx, userID)
	// The indicator is stale either way; a failed delete is not worth
	// surfacing to the user.
	if delErr := r.adapter.DeleteMessage(ctx, ref); delErr != nil {
		r.log.Debug("delete indicator failed", logx.Err(delErr))
	}
	if err != nil {
		return err
	}

	opt := &kit.SendOptions{DisablePreview: true}
	if len(res.Restricted()) > 0 {
		opt.ReplyMarkupAdapter = telegram.InlineKeyboard(
			telegram.InlineButton{Text: "🔒 Restricted only", Data: cbRestricted},
		)
	}
	_, err = r.adapter.SendText(ctx, chat, report.Format(res), opt)
	return err
}

func (r *Router) cmdClear(ctx context.Context, chat kit.ChatTarget, userID int64) error {
	if err := r.core.ClearNumbers(ctx, userID); err != nil {
		return err
	}
	return r.reply(ctx, chat, "🗑 Cleared. Nothing is tracked now.")
}

func (r *Router) cmdNotify(ctx context.Context, chat kit.ChatTarget, userID int64, args []string) error {
	if len(args) == 0 {
		on, err := r.core.NotificationsEnabled(ctx, userID)
		if err != nil {
			return err
		}
		if on {
			return r.reply(ctx, chat, "🔔 Scheduled notifications are on. Use /notify off to disable.")
		}
		return r.reply(ctx, chat, "🔕 Scheduled notifications are off. Use /notify on to enable.")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if err := r.core.SetNotifications(ctx, userID, true); err != nil {
			return err
		}
		return r.reply(ctx, chat, "🔔 Scheduled notifications enabled.")
	case "off":
		if err := r.core.SetNotifications(ctx, userID, false); err != nil {
			return err
		}
		return r.reply(ctx, chat, "🔕 Scheduled notifications disabled.")
	default:
		return r.reply(ctx, chat, "Usage: /notify on|off")
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	hctx, cancel := context.WithTimeout(ctx, r.cfg.CommandTimeout)
	defer cancel()

	if cb.Data != cbRestricted {
		_ = r.adapter.AnswerCallback(hctx, cb.ID, "")
		return
	}
	items, ok := r.core.CachedResults(cb.FromID, true)
	if !ok {
		_ = r.adapter.AnswerCallback(hctx, cb.ID, "No results yet — run /chk first.")
		return
	}
	if err := r.adapter.AnswerCallback(hctx, cb.ID, ""); err != nil {
		r.log.Debug("answer callback failed", logx.Err(err))
	}
	chat := kit.ChatTarget{ChatID: cb.ChatID}
	if err := r.reply(hctx, chat, report.FormatRestricted(items)); err != nil {
		r.log.Error("callback reply failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
	}
}

func (r *Router) reply(ctx context.Context, chat kit.ChatTarget, text string) error {
	_, err := r.adapter.SendText(ctx, chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// parseCommand extracts "/cmd arg..." from message text. The @botname
// suffix Telegram appends in groups is stripped. Non-command text yields "".
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}
