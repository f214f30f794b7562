package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emprenix/internal/models"
)

type fakeChain struct {
	history []models.Message
	closed  bool
}

func (c *fakeChain) Query(_ context.Context, question string) (*models.PromptResponse, error) {
	c.history = append(c.history,
		models.Message{Role: models.RoleUser, Content: question},
		models.Message{Role: models.RoleAssistant, Content: "answer to " + question},
	)
	return &models.PromptResponse{Query: question, Answer: "answer to " + question, History: c.history}, nil
}

func (c *fakeChain) History(context.Context) ([]models.Message, error) {
	return c.history, nil
}

func (c *fakeChain) Close(context.Context) error {
	c.closed = true
	return nil
}

type countingBuilder struct {
	built  []*fakeChain
	failed error
}

func (b *countingBuilder) build(context.Context) (Chain, error) {
	if b.failed != nil {
		return nil, b.failed
	}
	c := &fakeChain{}
	b.built = append(b.built, c)
	return c, nil
}

func TestToggleTwiceRestoresVisibility(t *testing.T) {
	ctx := context.Background()
	b := &countingBuilder{}
	s := New("s1")
	require.False(t, s.ChatVisible())

	visible, err := s.Toggle(ctx, b.build)
	require.NoError(t, err)
	assert.True(t, visible)

	visible, err = s.Toggle(ctx, b.build)
	require.NoError(t, err)
	assert.False(t, visible)
	assert.False(t, s.ChatVisible())

	require.Len(t, b.built, 1)
	assert.True(t, b.built[0].closed)
}

func TestToggleOnStartsWithEmptyHistory(t *testing.T) {
	ctx := context.Background()
	b := &countingBuilder{}
	s := New("s1")

	_, err := s.Toggle(ctx, b.build)
	require.NoError(t, err)
	_, err = s.Ask(ctx, "What does Emprenix do?")
	require.NoError(t, err)
	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = s.Toggle(ctx, b.build)
	require.NoError(t, err)
	_, err = s.Toggle(ctx, b.build)
	require.NoError(t, err)

	history, err = s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
	require.Len(t, b.built, 2)
}

func TestAskWhileHidden(t *testing.T) {
	s := New("s1")
	_, err := s.Ask(context.Background(), "hello")
	require.ErrorIs(t, err, ErrChatInactive)

	history, err := s.History(context.Background())
	require.NoError(t, err)
	assert.Nil(t, history)
}

func TestToggleBuildFailureKeepsChatHidden(t *testing.T) {
	b := &countingBuilder{failed: errors.New("document missing")}
	s := New("s1")

	visible, err := s.Toggle(context.Background(), b.build)
	require.Error(t, err)
	assert.False(t, visible)
	assert.False(t, s.ChatVisible())
}

func TestStoreCreateGetDestroy(t *testing.T) {
	ctx := context.Background()
	st := NewStore(time.Hour)

	s, err := st.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	b := &countingBuilder{}
	_, err = s.Toggle(ctx, b.build)
	require.NoError(t, err)

	st.Destroy(ctx, s.ID)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)
	assert.True(t, b.built[0].closed)
	assert.Zero(t, st.Len())
}

func TestStoreSweepDiscardsIdleSessions(t *testing.T) {
	ctx := context.Background()
	st := NewStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }

	idle, err := st.Create()
	require.NoError(t, err)
	fresh, err := st.Create()
	require.NoError(t, err)

	b := &countingBuilder{}
	_, err = idle.Toggle(ctx, b.build)
	require.NoError(t, err)

	idle.touchAt(now.Add(-2 * time.Minute))
	fresh.touchAt(now)

	assert.Equal(t, 1, st.Sweep(ctx))
	assert.Equal(t, 1, st.Len())
	assert.True(t, b.built[0].closed)

	_, ok := st.Get(fresh.ID)
	assert.True(t, ok)
}

func TestStoreGetExpired(t *testing.T) {
	st := NewStore(time.Minute)
	s, err := st.Create()
	require.NoError(t, err)
	s.touchAt(time.Now().Add(-time.Hour))

	_, ok := st.Get(s.ID)
	assert.False(t, ok)
	assert.Zero(t, st.Len())
}

type blockingChain struct {
	fakeChain
	entered chan struct{}
	release chan struct{}
}

func (c *blockingChain) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	close(c.entered)
	<-c.release
	return c.fakeChain.Query(ctx, question)
}

func TestSweepDoesNotWaitForInFlightQuestion(t *testing.T) {
	ctx := context.Background()
	st := NewStore(time.Minute)

	busy, err := st.Create()
	require.NoError(t, err)
	chain := &blockingChain{entered: make(chan struct{}), release: make(chan struct{})}
	_, err = busy.Toggle(ctx, func(context.Context) (Chain, error) { return chain, nil })
	require.NoError(t, err)

	asked := make(chan error, 1)
	go func() {
		_, err := busy.Ask(ctx, "What does Emprenix do?")
		asked <- err
	}()
	<-chain.entered

	swept := make(chan int, 1)
	go func() { swept <- st.Sweep(ctx) }()

	select {
	case n := <-swept:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("sweep waited on a session that is answering a question")
	}

	created := make(chan error, 1)
	go func() {
		_, err := st.Create()
		created <- err
	}()
	select {
	case err := <-created:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("creating a session waited on another session's question")
	}

	_, ok := st.Get(busy.ID)
	assert.True(t, ok)
	assert.False(t, chain.closed)

	close(chain.release)
	require.NoError(t, <-asked)
}

func TestSweepKeepsSessionsInUse(t *testing.T) {
	ctx := context.Background()
	st := NewStore(200 * time.Millisecond)

	s, err := st.Create()
	require.NoError(t, err)
	b := &countingBuilder{}
	_, err = s.Toggle(ctx, b.build)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				st.Sweep(ctx)
			}
		}
	}()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		got, ok := st.Get(s.ID)
		require.True(t, ok)
		require.Same(t, s, got)
		require.True(t, got.ChatVisible())
		time.Sleep(time.Millisecond)
	}
	close(stop)
	wg.Wait()

	assert.False(t, b.built[0].closed)
	assert.Equal(t, 1, st.Len())
}
