package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ErronZrz/rank-poll/internal/submitter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serverURL  string
	ballotUUID string
	order      []string
	moves      []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a ballot ordering to a running poll",
	Long: `Posts the items before the delimiter as the ballot's ranking.

With --move the order is rearranged like a drag on the ballot page and each
move submits the new ranking; without it the given order is submitted once.

Example:
  poll submit --server http://localhost:8080 --uuid <ballot> --order 5,3,delimiter,9
  poll submit --uuid <ballot> --order 5,3,delimiter,9 --move 3:0`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "poll server base URL")
	submitCmd.Flags().StringVar(&ballotUUID, "uuid", "", "ballot uuid (session cookie)")
	submitCmd.Flags().StringSliceVar(&order, "order", nil, "item ids and the delimiter, in display order")
	submitCmd.Flags().StringSliceVar(&moves, "move", nil, "drag from:to positions, applied in order")
	_ = submitCmd.MarkFlagRequired("uuid")
	_ = submitCmd.MarkFlagRequired("order")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, err := submitter.NewSessionClient(serverURL, ballotUUID)
	if err != nil {
		return err
	}
	s, err := submitter.New(serverURL, submitter.WithHTTPClient(client), submitter.WithLogger(logger))
	if err != nil {
		return err
	}

	if len(moves) == 0 {
		ids, err := submitter.RankedItemIDs(order)
		if err != nil {
			return err
		}
		if err := s.Submit(cmd.Context(), ids); err != nil {
			return err
		}
		logger.Info("ranking submitted", zap.Ints("ranked_item_ids", ids))
		return nil
	}

	list := s.Bind(order)
	for _, m := range moves {
		from, to, err := parseMove(m)
		if err != nil {
			return err
		}
		if err := list.Move(from, to); err != nil {
			return err
		}
		logger.Debug("moved", zap.Int("from", from), zap.Int("to", to), zap.Strings("order", list.ToArray()))
	}
	s.Wait()
	logger.Info("final order", zap.Strings("order", list.ToArray()))
	return nil
}

func parseMove(s string) (from, to int, err error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("move %q: want from:to", s)
	}
	if from, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("move %q: %w", s, err)
	}
	if to, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("move %q: %w", s, err)
	}
	return from, to, nil
}
