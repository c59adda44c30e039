package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/desain-gratis/common/lib/notifier"
	notifier_impl "github.com/desain-gratis/common/lib/notifier/impl"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/desain-gratis/unitbot/internal/src/discord"
	"github.com/desain-gratis/unitbot/internal/src/dispatcher"
	"github.com/desain-gratis/unitbot/internal/src/systemd"
	"github.com/desain-gratis/unitbot/src/unitbot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to discord and serve commands",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	err := unitbot.LoadSecrets(config.Viper)
	if err != nil && !errors.Is(err, unitbot.ErrNotConfigured) {
		return err
	}

	manager := config.manager()
	err = retry(func() error {
		return manager.Probe(ctx)
	}, config.GetInt("bus.probe_attempts"))
	if err != nil {
		// the bot still answers, every command reports the bus as unreachable
		log.Err(err).Msgf("system bus is not reachable")
	}

	var topic notifier.Topic = notifier_impl.NewStandardTopic()

	dcfg := config.dispatcherConfig(nil)
	dcfg.Topic = topic
	d := dispatcher.New(manager, dcfg)

	wg := new(sync.WaitGroup)

	var watcher *systemd.Watcher
	if config.GetBool("watch.enabled") {
		watcher = systemd.NewWatcher(topic, config.GetDuration("watch.interval"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Keep(ctx, config.GetDuration("watch.retry_delay"))
		}()
	}

	if config.GetBool("http.enabled") {
		router := httprouter.New()
		enableSystemdModule(router, manager, watcher, topic)
		go startRouter(ctx, wg, router, config.GetString("http.address"))
	}

	bot, err := discord.New(config.discordConfig(), d)
	if err != nil {
		cancel(err)
		wg.Wait()
		return err
	}

	if err := bot.Start(ctx); err != nil {
		cancel(err)
		wg.Wait()
		return err
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	log.Info().Msgf("WAITING FOR SIGINT :)")
	<-sigint

	cancel(errors.New("server closed"))
	if err := bot.Close(); err != nil {
		log.Err(err).Msgf("failed to close discord session")
	}
	wg.Wait()
	log.Info().Msgf("Bye bye")

	return nil
}

func enableSystemdModule(router *httprouter.Router, manager *systemd.Manager, watcher *systemd.Watcher, topic notifier.Topic) {
	httpIntegration := systemd.Http(manager, watcher, topic,
		config.GetStringSlice("http.origin_patterns"),
		config.GetString("units.default_suffix"),
	)

	router.GET("/units/:unit", httpIntegration.GetStatus)
	router.GET("/units/:unit/errors", httpIntegration.GetErrors)
	router.GET("/units/:unit/logs", httpIntegration.GetLogs)
	router.GET("/ws", httpIntegration.StreamUnit)
}

func startRouter(ctx context.Context, wg *sync.WaitGroup, router *httprouter.Router, address string) {
	wsWg := &sync.WaitGroup{}
	server := &http.Server{
		Addr:    address,
		Handler: router,

		// important: do not set WriteTimeout, the websocket stream is long running
		ReadHeaderTimeout: 5 * time.Second,

		BaseContext: func(l net.Listener) context.Context {
			return context.WithValue(ctx, systemd.WaitGroupKey, wsWg)
		},
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()

		// close HTTP connection
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msgf("Shutting down HTTP server..")
		if err := server.Shutdown(ctx); err != nil {
			// Error from closing listeners, or context timeout:
			log.Err(err).Msgf("HTTP server Shutdown")
		}

		log.Info().Msgf("Waiting for websocket connection to close..")
		wsWg.Wait()
	}()

	log.Info().Msgf("Serving at %v..", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		// Error starting or closing listener:
		log.Fatal().Msgf("HTTP server ListenAndServe: %v", err)
	}
}
