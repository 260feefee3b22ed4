package demo_test

import (
	"context"
	"testing"

	"github.com/aretw0/prt/internal/demo"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/driver"
	"github.com/aretw0/prt/pkg/observability"
	"github.com/aretw0/prt/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"coin", "elevator", "pingpong"}, demo.Names())

	_, err := demo.Load("nope")
	assert.ErrorContains(t, err, "unknown demo")
}

func TestDemosTerminate(t *testing.T) {
	for _, name := range []string{"pingpong", "elevator"} {
		t.Run(name, func(t *testing.T) {
			d, err := demo.Load(name)
			require.NoError(t, err)
			drv, err := driver.New(d.Program, d.Main, driver.WithLiveness(true))
			require.NoError(t, err)

			res, err := drv.NewRun(strategy.NewRoundRobin()).Execute(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, observability.OutcomeOK, res.Outcome)

			exp, err := drv.Explore(context.Background(), driver.ExploreConfig{Iterations: 20, Workers: 2})
			require.NoError(t, err)
			assert.Equal(t, 20, exp.Outcomes[observability.OutcomeOK])
			assert.Nil(t, exp.Failure)
		})
	}
}

func TestElevator_EndsClosed(t *testing.T) {
	d, err := demo.Elevator()
	require.NoError(t, err)
	drv, err := driver.New(d.Program, d.Main)
	require.NoError(t, err)

	run := drv.NewRun(strategy.NewRandom(11))
	_, err = run.Execute(context.Background(), nil)
	require.NoError(t, err)

	recs := run.Machines()
	require.Len(t, recs, 2)
	door := recs[1]
	assert.Equal(t, "Door", door.Type)
	require.Len(t, door.States, 1, "the emergency stop was popped")
	assert.Equal(t, domain.StateID("Closed"), door.States[0].State)
	assert.Empty(t, door.Buffer)
}

func TestCoin_ExplorationFindsTwoHeads(t *testing.T) {
	d, err := demo.Coin()
	require.NoError(t, err)
	drv, err := driver.New(d.Program, d.Main)
	require.NoError(t, err)

	exp, err := drv.Explore(context.Background(), driver.ExploreConfig{Iterations: 50, Workers: 4})
	require.NoError(t, err)
	require.NotNil(t, exp.Failure)

	var unhandled *domain.UnhandledEventError
	require.ErrorAs(t, exp.Failure.Err, &unhandled)
	assert.Equal(t, "two_heads", unhandled.Event)
}
