package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/chat"
	"github.com/user/docchat/internal/stream"
	"github.com/user/docchat/internal/types"
)

var (
	askThread    string
	askStream    bool
	askDocs      []string
	askSummary   string
	searchThread string
)

func init() {
	askCmd.Flags().StringVar(&askThread, "thread", "", "existing thread id (a new thread is created when empty)")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print progress events while the run is in flight")
	askCmd.Flags().StringSliceVar(&askDocs, "doc", nil, "document name to attach (repeatable)")
	askCmd.Flags().StringVar(&askSummary, "prepend", "", "web summary to prefix the question with")
	searchCmd.Flags().StringVar(&searchThread, "thread", "", "thread whose history provides context")
	rootCmd.AddCommand(askCmd, searchCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		thread := types.ThreadID(askThread)
		if thread == "" {
			if thread, err = a.chat.CreateThread(ctx); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "thread: %s\n", thread)
		}

		req := chat.TurnRequest{
			Thread:         thread,
			Text:           strings.Join(args, " "),
			Documents:      askDocs,
			PrependSummary: askSummary,
		}
		var result *canonical.Result
		if askStream {
			result, err = a.chat.ProcessTurnStreaming(ctx, req, printEvents(os.Stderr))
		} else {
			result, err = a.chat.ProcessTurn(ctx, req)
		}
		printResult(os.Stdout, result)
		return err
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Answer a question from the web",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		thread := types.ThreadID(searchThread)
		if thread == "" {
			thread = types.ThreadID("cli-" + string(types.NewRequestID()))
		}
		printResult(os.Stdout, a.chat.SearchWeb(cmd.Context(), thread, strings.Join(args, " ")))
		return nil
	},
}

// printEvents writes status and error events as they arrive.
func printEvents(w io.Writer) stream.Sink {
	return stream.SinkFunc(func(_ context.Context, e stream.Event) error {
		switch e.Kind {
		case stream.KindStatus, stream.KindError:
			data, _ := json.Marshal(e.Data)
			fmt.Fprintf(w, "[%s] %s\n", e.Kind, data)
		}
		return nil
	})
}

func printResult(w io.Writer, r *canonical.Result) {
	if r == nil {
		return
	}
	fmt.Fprintln(w, r.Answer)
	if len(r.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, c := range r.Citations {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if r.NeedsConsent {
		fmt.Fprintf(w, "\n%s\n", r.Message)
	}
}
