//go:build protogen

package calendar

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/wctitle/titlebook/libs/grpcx"
	calendarv1 "github.com/wctitle/titlebook/protos/gen/calendar/v1"
)

// BusyInterval is one committed range on the external office calendar.
type BusyInterval struct {
	StartUTC time.Time
	EndUTC   time.Time
}

// Provider reads busy time from the external calendar system. A nil
// provider means the database is the only source of busy intervals.
type Provider interface {
	ListBusy(ctx context.Context, calendarID string, fromUTC, toUTC time.Time) ([]BusyInterval, error)
}

type grpcProvider struct {
	client calendarv1.CalendarServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: calendarv1.NewCalendarServiceClient(conn)}, nil
}

func (p *grpcProvider) ListBusy(ctx context.Context, calendarID string, fromUTC, toUTC time.Time) ([]BusyInterval, error) {
	resp, err := p.client.ListBusy(ctx, &calendarv1.ListBusyRequest{
		CalendarId: calendarID,
		From:       timestamppb.New(fromUTC),
		To:         timestamppb.New(toUTC),
	})
	if err != nil {
		return nil, err
	}
	var out []BusyInterval
	for _, iv := range resp.GetIntervals() {
		if iv.GetStart() == nil || iv.GetEnd() == nil {
			continue
		}
		start := iv.GetStart().AsTime()
		end := iv.GetEnd().AsTime()
		if end.After(start) {
			out = append(out, BusyInterval{StartUTC: start, EndUTC: end})
		}
	}
	return out, nil
}
