package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/tg-helpdesk/app/broadcast"
	"github.com/umputun/tg-helpdesk/app/events"
	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
	"github.com/umputun/tg-helpdesk/app/relay"
	"github.com/umputun/tg-helpdesk/app/server"
)

type options struct {
	Token           string        `long:"token" env:"BOT_TOKEN" description:"telegram bot token" required:"true"`
	SupportUsername string        `long:"support" env:"SUPPORT_USERNAME" description:"support account username" required:"true"`
	ChannelID       int64         `long:"channel" env:"SUPPORT_CHANNEL_ID" description:"moderation channel id" required:"true"`
	AdminChatID     int64         `long:"admin-chat" env:"ADMIN_CHAT_ID" description:"admin chat id, gets fallbacks and errors" required:"true"`
	Admins          events.Admins `long:"admin" env:"ADMIN_USER_IDS" env-delim:"," description:"user ids allowed to use admin commands"`
	Brand           string        `long:"brand" env:"BRAND" default:"FireKirin" description:"brand name used in messages"`
	WhatsApp        string        `long:"whatsapp" env:"WHATSAPP" description:"optional whatsapp contact shown in support info"`
	TgTimeout       time.Duration `long:"tg-timeout" env:"TG_TIMEOUT" default:"30s" description:"http client timeout for telegram"`

	Session struct {
		Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"10m" description:"scam report inactivity timeout"`
		Sweep   time.Duration `long:"sweep" env:"SWEEP" default:"30s" description:"interval of expired sessions check"`
	} `group:"session" namespace:"session" env-namespace:"SESSION"`

	Promo struct {
		File         string        `long:"file" env:"FILE" description:"promotional messages file, separated by --- lines"`
		MinDelay     time.Duration `long:"min-delay" env:"MIN_DELAY" default:"1h" description:"min delay between broadcast cycles"`
		MaxDelay     time.Duration `long:"max-delay" env:"MAX_DELAY" default:"4h" description:"max delay between broadcast cycles"`
		InitialDelay time.Duration `long:"initial-delay" env:"INITIAL_DELAY" default:"30s" description:"delay before the first cycle"`
		Pace         time.Duration `long:"pace" env:"PACE" default:"100ms" description:"pause between sends in a cycle"`
		RandomMin    time.Duration `long:"random-min" env:"RANDOM_MIN" default:"30m" description:"min interval of random promotions"`
		RandomMax    time.Duration `long:"random-max" env:"RANDOM_MAX" default:"2h" description:"max interval of random promotions"`
		NoRandom     bool          `long:"no-random" env:"NO_RANDOM" description:"disable random promotions"`
		NoBroadcast  bool          `long:"no-broadcast" env:"NO_BROADCAST" description:"disable broadcast cycles"`
	} `group:"promo" namespace:"promo" env-namespace:"PROMO"`

	Digest string `long:"digest" env:"DIGEST" default:"0 9 * * *" description:"crontab of daily statistics digest, empty to disable"`

	Server struct {
		Listen string `long:"listen" env:"LISTEN" description:"status server listen address, disabled if not set"`
	} `group:"server" namespace:"server" env-namespace:"SERVER"`

	Logger struct {
		FileName   string `long:"file" env:"FILE" description:"location of rotated log, disabled if not set"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"10M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"5" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	Dbg   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	TGDbg bool `long:"tg-dbg" env:"TG_DEBUG" description:"telegram debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("tg-helpdesk %s\n", revision)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] can't load .env file: %v", err)
	}

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}
	if err := opts.validate(); err != nil {
		log.Printf("[ERROR] invalid options: %v", err)
		os.Exit(2)
	}

	logWr, err := makeLogWriter(opts)
	if err != nil {
		log.Printf("[ERROR] can't make log writer: %v", err)
		os.Exit(2)
	}
	defer logWr.Close()
	setupLog(opts.Dbg, logWr, opts.Token)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	tbAPI, err := makeBotAPI(ctx, opts.Token, &http.Client{Timeout: opts.TgTimeout}, 5, time.Second)
	if err != nil {
		return err
	}
	tbAPI.Debug = opts.TGDbg
	log.Printf("[INFO] telegram bot %q authorized", tbAPI.Self.UserName)

	clock := clockwork.NewRealClock()
	supportURL := supportLink(opts.SupportUsername)
	users := registry.New()
	collector := flow.NewCollector(clock, opts.Session.Timeout)
	rl := &relay.Relay{TbAPI: tbAPI, ChannelID: opts.ChannelID, AdminChatID: opts.AdminChatID, Clock: clock}

	pool := broadcast.NewPool(strings.TrimPrefix(opts.SupportUsername, "@"))
	if opts.Promo.File != "" {
		go func() {
			if werr := pool.Watch(ctx, opts.Promo.File); werr != nil {
				log.Printf("[WARN] promo file watcher stopped, keep current messages: %v", werr)
			}
		}()
	}

	broadcaster := makeBroadcaster(opts, tbAPI, users, pool, supportURL, clock)
	go func() {
		if berr := broadcaster.Run(ctx); berr != nil && !errors.Is(berr, context.Canceled) {
			log.Printf("[WARN] broadcaster stopped: %v", berr)
		}
	}()

	jobs, err := broadcast.NewJobs(ctx, makeJobsParams(opts, tbAPI, users, pool, rl, supportURL))
	if err != nil {
		return fmt.Errorf("can't make scheduled jobs: %w", err)
	}
	jobs.Start()
	defer func() {
		if serr := jobs.Shutdown(); serr != nil {
			log.Printf("[WARN] %v", serr)
		}
	}()

	if opts.Server.Listen != "" {
		srv := server.New(server.Params{ListenAddr: opts.Server.Listen, Version: revision,
			Registry: users, Promotion: broadcaster, Sessions: collector})
		go func() {
			if serr := srv.Run(ctx); serr != nil {
				log.Printf("[WARN] status server failed: %v", serr)
			}
		}()
	}

	tgListener := events.TelegramListener{
		TbAPI:         tbAPI,
		Relay:         rl,
		Registry:      users,
		Collector:     collector,
		Texts:         events.Texts{Brand: opts.Brand, SupportURL: supportURL, WhatsApp: opts.WhatsApp},
		Admins:        opts.Admins,
		ChannelID:     opts.ChannelID,
		AdminChatID:   opts.AdminChatID,
		SweepInterval: opts.Session.Sweep,
		Clock:         clock,
	}
	log.Printf("[DEBUG] telegram listener config: {channel: %d, admin chat: %d, admins: %v, timeout: %v}",
		opts.ChannelID, opts.AdminChatID, opts.Admins, opts.Session.Timeout)

	if err := tgListener.Do(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram listener failed: %w", err)
	}
	return nil
}

// makeBotAPI creates telegram client, retries a few times as telegram may be unreachable on startup
func makeBotAPI(ctx context.Context, token string, client *http.Client, attempts int, delay time.Duration) (*tbapi.BotAPI, error) {
	var tbAPI *tbapi.BotAPI
	err := repeater.NewDefault(attempts, delay).Do(ctx, func() error {
		var err error
		if tbAPI, err = tbapi.NewBotAPIWithClient(token, tbapi.APIEndpoint, client); err != nil {
			log.Printf("[WARN] can't make telegram bot: %v", err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("can't make telegram bot: %w", err)
	}
	return tbAPI, nil
}

func makeBroadcaster(opts options, tbAPI broadcast.TbAPI, users broadcast.Users, pool *broadcast.Pool,
	supportURL string, clock clockwork.Clock) *broadcast.Broadcaster {
	res := broadcast.NewBroadcaster(broadcast.Params{
		TbAPI:        tbAPI,
		Users:        users,
		Pool:         pool,
		SupportURL:   supportURL,
		Pace:         opts.Promo.Pace,
		MinDelay:     opts.Promo.MinDelay,
		MaxDelay:     opts.Promo.MaxDelay,
		InitialDelay: opts.Promo.InitialDelay,
		Clock:        clock,
	})
	if opts.Promo.NoBroadcast {
		log.Printf("[WARN] broadcast cycles disabled")
		res.SetActive(false)
	}
	return res
}

func makeJobsParams(opts options, tbAPI broadcast.TbAPI, users *registry.Registry, pool *broadcast.Pool,
	rl *relay.Relay, supportURL string) broadcast.JobsParams {
	res := broadcast.JobsParams{PromoMinDelay: opts.Promo.RandomMin, PromoMaxDelay: opts.Promo.RandomMax}
	if !opts.Promo.NoRandom {
		res.Promoter = &broadcast.Promoter{TbAPI: tbAPI, Users: users, Pool: pool, SupportURL: supportURL}
	}
	if opts.Digest != "" {
		res.DigestSchedule = opts.Digest
		res.Digest = func() error { return rl.SendStats(users.Stats()) }
	}
	return res
}

// validate checks options go-flags can't check by itself
func (o options) validate() error {
	errs := new(multierror.Error)
	if strings.TrimSpace(o.Token) == "" {
		errs = multierror.Append(errs, errors.New("empty bot token"))
	}
	if strings.TrimPrefix(strings.TrimSpace(o.SupportUsername), "@") == "" {
		errs = multierror.Append(errs, errors.New("empty support username"))
	}
	if o.ChannelID == 0 {
		errs = multierror.Append(errs, errors.New("zero support channel id"))
	}
	if o.AdminChatID == 0 {
		errs = multierror.Append(errs, errors.New("zero admin chat id"))
	}
	if o.Promo.MinDelay > o.Promo.MaxDelay {
		errs = multierror.Append(errs, fmt.Errorf("promo min delay %v is greater than max delay %v",
			o.Promo.MinDelay, o.Promo.MaxDelay))
	}
	if !o.Promo.NoRandom && o.Promo.RandomMin >= o.Promo.RandomMax {
		errs = multierror.Append(errs, fmt.Errorf("random promo min %v should be less than max %v",
			o.Promo.RandomMin, o.Promo.RandomMax))
	}
	return errs.ErrorOrNil()
}

// supportLink makes t.me link from username, with or without leading @
func supportLink(username string) string {
	return "https://t.me/" + strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// makeLogWriter makes lumberjack logger with rotation, io.Discard if log file not set
func makeLogWriter(opts options) (io.WriteCloser, error) {
	if opts.Logger.FileName == "" {
		return nopWriteCloser{io.Discard}, nil
	}

	maxSize, err := sizeParse(opts.Logger.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("can't parse logger MaxSize: %w", err)
	}
	maxSize /= 1048576
	if maxSize == 0 {
		maxSize = 1
	}

	log.Printf("[INFO] logger enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

// sizeParse parses sizes like 10M, 512k or plain bytes
func sizeParse(inp string) (uint64, error) {
	if inp == "" {
		return 0, errors.New("empty value")
	}
	for i, sfx := range []string{"k", "m", "g", "t"} {
		if strings.HasSuffix(strings.ToLower(inp), sfx) {
			val, err := strconv.Atoi(inp[:len(inp)-1])
			if err != nil {
				return 0, fmt.Errorf("can't parse %s: %w", inp, err)
			}
			return uint64(float64(val) * math.Pow(float64(1024), float64(i+1))), nil
		}
	}
	return strconv.ParseUint(inp, 10, 64)
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, fileWr io.Writer, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if _, discard := fileWr.(nopWriteCloser); fileWr != nil && !discard {
		// no colors in the file
		logOpts = append(logOpts, lgr.Out(io.MultiWriter(os.Stdout, fileWr)))
	} else {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
