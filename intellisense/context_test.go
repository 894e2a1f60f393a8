package intellisense_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rlch/dvql/intellisense"
)

func TestContextService_InitialState(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	id, ok := svc.ActiveEnvironment()
	assert.Empty(t, id)
	assert.False(t, ok)
	assert.False(t, svc.HasActiveEnvironment())
}

func TestContextService_FiresOnlyOnChange(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var got []string

	svc.OnEnvironmentChange(func(id string) { got = append(got, id) })

	svc.SetActiveEnvironment("env-1")
	svc.SetActiveEnvironment("env-1")

	assert.Equal(t, []string{"env-1"}, got)

	svc.SetActiveEnvironment("env-2")
	svc.ClearActiveEnvironment()
	svc.ClearActiveEnvironment()

	assert.Equal(t, []string{"env-1", "env-2", ""}, got)
	assert.False(t, svc.HasActiveEnvironment())
}

func TestContextService_RegistrationOrder(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var order []int

	for i := range 3 {
		svc.OnEnvironmentChange(func(string) { order = append(order, i) })
	}

	svc.SetActiveEnvironment("env-1")

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestContextService_StateVisibleToListeners(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var seen string

	svc.OnEnvironmentChange(func(string) {
		seen, _ = svc.ActiveEnvironment()
	})

	svc.SetActiveEnvironment("env-1")

	assert.Equal(t, "env-1", seen)
}

func TestContextService_Unsubscribe(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var a, b int

	unsubA := svc.OnEnvironmentChange(func(string) { a++ })
	svc.OnEnvironmentChange(func(string) { b++ })

	svc.SetActiveEnvironment("env-1")

	unsubA()
	unsubA()

	svc.SetActiveEnvironment("env-2")

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestContextService_SameFunctionRegisteredTwice(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var n int

	listener := func(string) { n++ }

	unsub := svc.OnEnvironmentChange(listener)
	svc.OnEnvironmentChange(listener)

	svc.SetActiveEnvironment("env-1")
	assert.Equal(t, 2, n)

	unsub()

	svc.SetActiveEnvironment("env-2")
	assert.Equal(t, 3, n)
}

func TestContextService_UnsubscribeDuringDispatch(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var calls []string

	var unsubB func()

	svc.OnEnvironmentChange(func(string) {
		calls = append(calls, "a")
		unsubB()
	})
	unsubB = svc.OnEnvironmentChange(func(string) { calls = append(calls, "b") })
	svc.OnEnvironmentChange(func(string) { calls = append(calls, "c") })

	svc.SetActiveEnvironment("env-1")

	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestContextService_ReentrantSet(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var got []string

	svc.OnEnvironmentChange(func(id string) {
		got = append(got, "first:"+id)
		if id == "env-1" {
			svc.SetActiveEnvironment("env-2")
		}
	})
	svc.OnEnvironmentChange(func(id string) { got = append(got, "second:"+id) })

	svc.SetActiveEnvironment("env-1")

	assert.Equal(t, []string{"first:env-1", "first:env-2", "second:env-2", "second:env-1"}, got)

	active, _ := svc.ActiveEnvironment()
	assert.Equal(t, "env-2", active)
}

func TestContextService_QueryExecutionRequests(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())
	svc.SetActiveEnvironment("env-1")

	var got []intellisense.QueryRequest

	unsub := svc.OnExecuteQueryRequest(func(req intellisense.QueryRequest) { got = append(got, req) })

	req := svc.RequestQueryExecution("SELECT name FROM account")

	require.Len(t, got, 1)
	assert.Equal(t, req, got[0])
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.Equal(t, "SELECT name FROM account", req.Query)
	assert.Equal(t, "env-1", req.EnvironmentID)

	other := svc.RequestQueryExecution("SELECT name FROM account")
	assert.NotEqual(t, req.ID, other.ID)

	unsub()
	unsub()

	svc.RequestQueryExecution("SELECT fullname FROM contact")
	assert.Len(t, got, 2)
}

func TestContextService_ChannelsAreIndependent(t *testing.T) {
	t.Parallel()

	svc := intellisense.NewContextService(zap.NewNop())

	var envCalls, execCalls int

	svc.OnEnvironmentChange(func(string) { envCalls++ })
	svc.OnExecuteQueryRequest(func(intellisense.QueryRequest) { execCalls++ })

	svc.RequestQueryExecution("SELECT name FROM account")
	assert.Equal(t, 0, envCalls)
	assert.Equal(t, 1, execCalls)

	svc.SetActiveEnvironment("env-1")
	assert.Equal(t, 1, envCalls)
	assert.Equal(t, 1, execCalls)
}
