package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// Header is the exact first line of subscriber CSV files.
var Header = []string{"forename", "surname", "imsi", "terminal_type", "subscription_type"}

// ImportResult lists what an import did.
type ImportResult struct {
	Created []*model.Subscriber `json:"created"`
	Skipped []string            `json:"skipped"`
}

// Import reads subscribers from CSV. Every row is validated before anything is
// written, so an invalid row aborts the import with an ImportError and creates
// nothing. Rows whose IMSI is already registered, or repeated earlier in the file,
// are skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := s.parse(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Created: []*model.Subscriber{}, Skipped: []string{}}
	seen := make(map[string]bool, len(rows))
	for _, sub := range rows {
		if seen[sub.IMSI] {
			result.Skipped = append(result.Skipped, sub.IMSI)
			continue
		}
		seen[sub.IMSI] = true

		_, err := s.store.GetSubscriberByIMSI(ctx, sub.IMSI)
		if err == nil {
			result.Skipped = append(result.Skipped, sub.IMSI)
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return result, fmt.Errorf("failed to look up imsi %s: %w", sub.IMSI, err)
		}

		if err := s.Create(ctx, sub); err != nil {
			if errors.Is(err, ErrDuplicateIMSI) {
				result.Skipped = append(result.Skipped, sub.IMSI)
				continue
			}
			return result, err
		}
		result.Created = append(result.Created, sub)
	}

	s.logger.WithFields(map[string]interface{}{
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	}).Info("Subscribers imported")
	return result, nil
}

func (s *Service) parse(r io.Reader) ([]*model.Subscriber, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrInvalidHeader, strings.Join(header, ","), strings.Join(Header, ","))
	}

	var subs []*model.Subscriber
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ImportError{Row: row, Err: err}
		}
		sub := &model.Subscriber{
			Forename:     strings.TrimSpace(rec[0]),
			Surname:      strings.TrimSpace(rec[1]),
			IMSI:         strings.TrimSpace(rec[2]),
			Terminal:     catalog.TerminalID(strings.TrimSpace(rec[3])),
			Subscription: catalog.SubscriptionID(strings.TrimSpace(rec[4])),
		}
		if err := s.Validate(sub); err != nil {
			return nil, &ImportError{Row: row, Err: err}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Export writes every subscriber as CSV in the import format.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	subs, err := s.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, sub := range subs {
		rec := []string{sub.Forename, sub.Surname, sub.IMSI, string(sub.Terminal), string(sub.Subscription)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write subscriber %d: %w", sub.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
