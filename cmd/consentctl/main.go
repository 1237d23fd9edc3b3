// Command consentctl manages the applications that have access to an
// account from the terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/oauth2"

	"consent-console/internal/adapters/accountapi"
	"consent-console/internal/adapters/alerts"
	"consent-console/internal/adapters/i18n"
	adapterlogger "consent-console/internal/adapters/logger"
	"consent-console/internal/application"
	"consent-console/internal/domain"
	"consent-console/internal/ports"
)

type Context struct {
	context.Context

	View      *application.ApplicationsView
	Localizer ports.Localizer
	Alerts    ports.AlertQueue
	In        *bufio.Reader
	Out       io.Writer
	Timeout   time.Duration
}

var cli struct {
	Server   string        `help:"Account server base URL." env:"ACCOUNT_BASE_URL" required:""`
	Realm    string        `help:"Realm of the account." env:"ACCOUNT_REALM" default:"master"`
	Token    string        `help:"Bearer access token of the account." env:"ACCOUNT_ACCESS_TOKEN" required:""`
	Locale   string        `help:"Locale of the output." env:"DEFAULT_LOCALE" default:"en"`
	Timezone string        `help:"Time zone dates are shown in." env:"DISPLAY_TIMEZONE" default:"UTC"`
	Timeout  time.Duration `help:"How long to wait for the account server." default:"20s"`
	Debug    bool          `help:"Enable debug logging."`

	List   ListCmd   `cmd:"" default:"1" help:"List applications with access to the account."`
	Show   ShowCmd   `cmd:"" help:"Show the details of one application."`
	Revoke RevokeCmd `cmd:"" help:"Remove the access granted to an application."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("consentctl"),
		kong.Description("Review and revoke application access to your account."),
	)
	app, err := setup(context.Background())
	kctx.FatalIfErrorf(err)
	defer app.View.Deactivate()
	kctx.FatalIfErrorf(kctx.Run(app))
}

func setup(ctx context.Context) (*Context, error) {
	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	bundle, err := i18n.NewBundle("en", loc)
	if err != nil {
		return nil, err
	}
	l := bundle.Localizer(cli.Locale)

	level := slog.LevelWarn
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := adapterlogger.NewWithWriter(os.Stderr, adapterlogger.Options{Level: level, Format: "text"})

	env := domain.Environment{
		ServerBaseURL: cli.Server,
		Realm:         cli.Realm,
		Locale:        l.Locale(),
		Token:         oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cli.Token, TokenType: "Bearer"}),
	}
	queue := alerts.NewQueue(0)
	notifier := application.NewNotifier(queue, l, "cli")
	view := application.NewApplicationsView(accountapi.NewClient(), env, notifier, logger)
	view.Activate(ctx)

	return &Context{
		Context:   ctx,
		View:      view,
		Localizer: l,
		Alerts:    queue,
		In:        bufio.NewReader(os.Stdin),
		Out:       os.Stdout,
		Timeout:   cli.Timeout,
	}, nil
}

// settle waits for the current load and fails when it did not succeed.
func (c *Context) settle() (application.Page, error) {
	ctx, cancel := context.WithTimeout(c, c.Timeout)
	defer cancel()
	s, err := c.View.WaitSettled(ctx)
	c.printAlerts()
	if err != nil {
		return application.Page{}, err
	}
	if s.LoadErr != nil {
		return application.Page{}, s.LoadErr
	}
	return application.Render(s, c.Localizer), nil
}

func (c *Context) printAlerts() {
	for _, a := range c.Alerts.Drain() {
		fmt.Fprintf(c.Out, "[%s] %s\n", a.Variant, a.Message)
	}
}

type ListCmd struct{}

func (cmd *ListCmd) Run(c *Context) error {
	page, err := c.settle()
	if err != nil {
		return err
	}
	return renderPage(c.Out, page)
}

type ShowCmd struct {
	ClientID string `arg:"" help:"Client id of the application."`
}

func (cmd *ShowCmd) Run(c *Context) error {
	if _, err := c.settle(); err != nil {
		return err
	}
	if err := c.View.Toggle(cmd.ClientID); err != nil {
		return err
	}
	page := application.Render(c.View.State(), c.Localizer)
	for _, row := range page.Rows {
		if row.ClientID == cmd.ClientID {
			return renderDetails(c.Out, row)
		}
	}
	return fmt.Errorf("application %q: %w", cmd.ClientID, domain.ErrNotFound)
}

type RevokeCmd struct {
	ClientID string `arg:"" help:"Client id of the application."`
	Yes      bool   `short:"y" help:"Do not ask for confirmation."`
}

func (cmd *RevokeCmd) Run(c *Context) error {
	if _, err := c.settle(); err != nil {
		return err
	}
	if err := c.View.RequestRemoval(cmd.ClientID); err != nil {
		return err
	}
	page := application.Render(c.View.State(), c.Localizer)
	if !cmd.Yes {
		ok, err := confirm(c.In, c.Out, *page.Confirmation)
		if err != nil {
			return err
		}
		if !ok {
			c.View.CancelRemoval()
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(c, c.Timeout)
	defer cancel()
	if err := c.View.ConfirmRemoval(ctx); err != nil {
		c.printAlerts()
		return err
	}
	page, err := c.settle()
	if err != nil {
		return err
	}
	return renderPage(c.Out, page)
}
