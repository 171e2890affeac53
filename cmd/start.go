package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/frc4533-lincoln/robudst/client"
	"github.com/frc4533-lincoln/robudst/internal/env"
	"github.com/frc4533-lincoln/robudst/internal/teamip"
	"github.com/frc4533-lincoln/robudst/transport"
)

var (
	// The host to bind the local status endpoint on
	host string

	// The port to listen for http requests on
	httpPort string

	// The team number, overriding ROBUDST_TEAM
	teamNumber uint16
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.Uint16VarP(&teamNumber, "team", "t", 0, "The team number the robot belongs to")
	flags.StringVar(&httpPort, "http-port", "7350", "The port to serve the local status endpoint on")
	flags.StringVarP(&host, "host", "a", "127.0.0.1", "The host to serve the local status endpoint on")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to the robot and start the station engine",
	Long: `Connect to the robot and start the station engine

Usage
	robudst start --team 4533

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.DebugHTTP)
		if err != nil {
			return err
		}

		if teamNumber == 0 {
			teamNumber = conf.TeamNumber
		}

		robotAddr, err := teamip.RobotAddr(teamNumber)
		if err != nil {
			return err
		}

		session, err := client.Dial(ctx, transport.Options{
			RobotAddr: robotAddr.String(),
			Log:       log.Named("transport"),
		}, log.Named("session"))
		if err != nil {
			return err
		}

		defer func() {
			if cerr := session.Close(); cerr != nil {
				log.Warn("Session did not close cleanly", zap.Error(cerr))
			}
		}()

		if conf.JoystickProfile != "" {
			descriptors, err := env.LoadJoystickProfiles(conf.JoystickProfile)
			if err != nil {
				return err
			}

			for _, desc := range descriptors {
				if err := session.SendJoystickDescriptor(desc); err != nil {
					return err
				}
			}
		}

		router := setupRouter(conf.DebugHTTP, log)

		// Ping test
		router.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		router.GET("/status", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", session.Store().Snapshot())
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the engine below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Station running",
			zap.Uint16("team", teamNumber),
			zap.String("robotAddr", robotAddr.String()),
			zap.String("host", host),
			zap.String("httpPort", httpPort))

		// Run the engine until a channel is lost or we are interrupted.
		runErr := session.Run(ctx)

		signalStop()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if runErr != nil {
			log.Error("Session ended", zap.Error(runErr))
			return runErr
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
