// Package telegram adapts telebot to the transport boundary.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "fragwatch/internal/transport"
	logx "fragwatch/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool

	// droppedUpdates counts updates dropped because the consumer was
	// slower than the poll loop; reported periodically, not per update.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:           m.ID,
				ChatID:       m.Chat.ID,
				FromID:       m.Sender.ID,
				FromUsername: m.Sender.Username,
				Text:         m.Text,
			},
		})
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      strings.TrimSpace(cb.Data),
			},
		})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()

	// Periodic summary for dropped updates (avoid noisy per-update logs).
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)",
						logx.Any("count", n), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	}()

	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	// telebot Stop is expected to be fast; run it async just in case and
	// keep shutdown snappy even if the long-poll is still waiting.
	done := make(chan struct{})
	go func() {
		a.bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		a.log.Warn("telegram stop timed out")
	case <-ctx.Done():
	}
	return nil
}

const textLimit = 4000

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	chat := &tele.Chat{ID: to.ChatID}
	chunks := splitText(text, textLimit)
	var ref kit.MessageRef
	for i, chunk := range chunks {
		// Markup only on the last chunk so buttons land under the tail.
		var o *kit.SendOptions
		if i == len(chunks)-1 {
			o = opt
		}
		m, err := a.bot.Send(chat, chunk, sendOpts(o)...)
		if err != nil {
			return ref, err
		}
		ref = kit.MessageRef{ChatID: to.ChatID, MessageID: m.ID}
	}
	return ref, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	msg := storedMessage{chatID: ref.ChatID, messageID: ref.MessageID}
	_, err := a.bot.Edit(msg, text, sendOpts(opt)...)
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	return a.bot.Delete(storedMessage{chatID: ref.ChatID, messageID: ref.MessageID})
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

type storedMessage struct {
	chatID    int64
	messageID int
}

func (m storedMessage) MessageSig() (string, int64) {
	return strconv.Itoa(m.messageID), m.chatID
}

func sendOpts(opt *kit.SendOptions) []any {
	var out []any
	if opt == nil {
		return out
	}
	if opt.DisablePreview {
		out = append(out, tele.NoPreview)
	}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok && rm != nil {
		out = append(out, rm)
	}
	return out
}

// splitText splits long messages on newline boundaries where possible.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	var out []string
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		} else {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// InlineButton is the transport-neutral description of one inline key.
type InlineButton struct {
	Text string
	Data string
}

// InlineKeyboard builds reply markup with one button per row, suitable
// for SendOptions.ReplyMarkupAdapter. Data is delivered back verbatim
// in the callback update.
func InlineKeyboard(buttons ...InlineButton) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []tele.InlineButton{{Text: b.Text, Data: b.Data}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
