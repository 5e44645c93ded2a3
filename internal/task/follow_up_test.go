package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/events"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T, sender mail.Sender) *FollowUpTaskFactory {
	t.Helper()
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)
	composer, err := mail.NewComposer("noreply@example.com", renderer)
	require.NoError(t, err)
	factory, err := NewFollowUpTaskFactory(composer, sender, time.Second, setupTestLogger())
	require.NoError(t, err)
	return factory
}

var testPayload = events.FollowUpPayload{
	SenderName: "Ana",
	Recipient:  "bob@example.com",
	Subject:    "Weekly report",
	DeliveryID: "<20240101.abc@mg.example.com>",
}

func TestFollowUpTask_Execute(t *testing.T) {
	var sent *mail.Message
	factory := newTestFactory(t, mail.SenderFunc(func(ctx context.Context, msg *mail.Message) (string, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		sent = msg
		return "<reply@mg>", nil
	}))

	mailTaskID := uuid.New()
	task := factory.CreateTask(mailTaskID, testPayload)
	assert.Equal(t, TaskTypeFollowUp, task.Type())
	assert.Equal(t, mailTaskID, task.MailTaskID())

	require.NoError(t, task.Execute(context.Background()))
	require.NotNil(t, sent)
	assert.Equal(t, "bob@example.com", sent.To)
	assert.Equal(t, "Re: Weekly report", sent.Subject)
	assert.Equal(t, testPayload.DeliveryID, sent.InReplyTo)
	assert.Contains(t, sent.From, "Ana")
}

func TestFollowUpTask_ExecuteFailures(t *testing.T) {
	t.Run("send error", func(t *testing.T) {
		factory := newTestFactory(t, mail.SenderFunc(func(context.Context, *mail.Message) (string, error) {
			return "", mail.ErrDelivery
		}))
		err := factory.CreateTask(uuid.New(), testPayload).Execute(context.Background())
		assert.ErrorIs(t, err, mail.ErrDelivery)
	})

	t.Run("missing delivery id", func(t *testing.T) {
		called := false
		factory := newTestFactory(t, mail.SenderFunc(func(context.Context, *mail.Message) (string, error) {
			called = true
			return "x", nil
		}))
		payload := testPayload
		payload.DeliveryID = ""
		err := factory.CreateTask(uuid.New(), payload).Execute(context.Background())
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestNewFollowUpTaskFactory_Validation(t *testing.T) {
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)
	composer, err := mail.NewComposer("noreply@example.com", renderer)
	require.NoError(t, err)
	sender := mail.SenderFunc(func(context.Context, *mail.Message) (string, error) { return "", nil })

	_, err = NewFollowUpTaskFactory(nil, sender, time.Second, setupTestLogger())
	assert.Error(t, err)
	_, err = NewFollowUpTaskFactory(composer, nil, time.Second, setupTestLogger())
	assert.Error(t, err)
	_, err = NewFollowUpTaskFactory(composer, sender, time.Second, nil)
	assert.Error(t, err)
}

type recordingSubmitter struct {
	tasks []Task
	err   error
}

func (s *recordingSubmitter) Submit(task Task) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

func TestFollowUpEventHandler(t *testing.T) {
	factory := newTestFactory(t, mail.SenderFunc(func(context.Context, *mail.Message) (string, error) {
		return "id", nil
	}))

	t.Run("queues follow-up", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		handler := NewFollowUpEventHandler(factory, submitter, setupTestLogger())

		mailTaskID := uuid.New()
		event, err := events.NewMailTaskEvent(events.EventFollowUpRequested, mailTaskID, testPayload)
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		require.Len(t, submitter.tasks, 1)
		followUp, ok := submitter.tasks[0].(*FollowUpTask)
		require.True(t, ok)
		assert.Equal(t, mailTaskID, followUp.MailTaskID())
	})

	t.Run("ignores other events", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		handler := NewFollowUpEventHandler(factory, submitter, setupTestLogger())

		event, err := events.NewMailTaskEvent("something.else", uuid.New(), testPayload)
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Empty(t, submitter.tasks)
	})

	t.Run("full queue drops silently", func(t *testing.T) {
		submitter := &recordingSubmitter{err: ErrQueueFull}
		handler := NewFollowUpEventHandler(factory, submitter, setupTestLogger())

		event, err := events.NewMailTaskEvent(events.EventFollowUpRequested, uuid.New(), testPayload)
		require.NoError(t, err)

		assert.NoError(t, handler.HandleEvent(context.Background(), event))
	})

	t.Run("bad payload", func(t *testing.T) {
		handler := NewFollowUpEventHandler(factory, &recordingSubmitter{}, setupTestLogger())
		event := &events.MailTaskEvent{
			ID:      uuid.New(),
			Type:    events.EventFollowUpRequested,
			TaskID:  uuid.New(),
			Payload: []byte("{not json"),
		}
		assert.Error(t, handler.HandleEvent(context.Background(), event))
	})

	t.Run("end to end through runner", func(t *testing.T) {
		delivered := make(chan *mail.Message, 1)
		f := newTestFactory(t, mail.SenderFunc(func(_ context.Context, msg *mail.Message) (string, error) {
			delivered <- msg
			return "id", nil
		}))
		runner := NewTaskRunner(DefaultTaskRunnerConfig(), setupTestLogger())
		runner.Start()

		emitter := events.NewInMemoryEventEmitter(setupTestLogger())
		emitter.RegisterHandler(NewFollowUpEventHandler(f, runner, setupTestLogger()))

		event, err := events.NewMailTaskEvent(events.EventFollowUpRequested, uuid.New(), testPayload)
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		require.NoError(t, runner.Stop(context.Background()))

		select {
		case msg := <-delivered:
			assert.Equal(t, "Re: Weekly report", msg.Subject)
		default:
			t.Fatal(errors.New("follow-up was not delivered"))
		}
	})
}
