package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Soule73/evalium-sub002/internal/dto"
)

func receiveEvent(t *testing.T, ch <-chan dto.AssignmentEvent) dto.AssignmentEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for assignment event")
	}
	return dto.AssignmentEvent{}
}

func TestAssignmentEventBusDeliversPerAssessment(t *testing.T) {
	bus := NewAssignmentEventBus(nil, nil, "", testLogger())
	ctx := context.Background()

	watched, stopWatched := bus.Subscribe(1)
	defer stopWatched()
	other, stopOther := bus.Subscribe(2)
	defer stopOther()

	bus.Publish(ctx, dto.AssignmentEvent{Type: dto.EventAssignmentStarted, AssessmentID: 1, AssignmentID: 10})

	event := receiveEvent(t, watched)
	require.Equal(t, dto.EventAssignmentStarted, event.Type)
	require.Equal(t, uint(10), event.AssignmentID)
	require.False(t, event.OccurredAt.IsZero())

	select {
	case unexpected := <-other:
		t.Fatalf("unexpected event %+v", unexpected)
	default:
	}
}

func TestAssignmentEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewAssignmentEventBus(nil, nil, "", testLogger())
	ch, stop := bus.Subscribe(5)
	stop()
	stop()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(context.Background(), dto.AssignmentEvent{AssessmentID: 5})
}

func TestAssignmentEventBusFansOutThroughRedis(t *testing.T) {
	_, client := newMiniredisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewAssignmentEventBus(client, nil, "evalium:test", testLogger())
	listener := NewAssignmentEventBus(client, nil, "evalium:test", testLogger())
	listener.Start(ctx)

	ch, stop := listener.Subscribe(3)
	defer stop()

	require.Eventually(t, func() bool {
		publisher.Publish(ctx, dto.AssignmentEvent{Type: dto.EventAssignmentSubmitted, AssessmentID: 3, StudentID: 8})
		select {
		case event := <-ch:
			return event.Type == dto.EventAssignmentSubmitted && event.StudentID == 8
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
