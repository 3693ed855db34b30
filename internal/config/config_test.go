package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/determined-ai/hpcoords/pkg/check"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	assert.NilError(t, c.Resolve())
	assert.NilError(t, check.Validate(c))
	assert.Equal(t, c.Port, defaultPort)
	assert.Equal(t, c.Stream.Period(), 5*time.Second)
	assert.Equal(t, c.Stream.MaxPeriod(), time.Minute)
}

func TestResolveKeepsExplicitValues(t *testing.T) {
	c := DefaultConfig()
	c.Port = 9000
	c.Stream.PeriodSeconds = 2
	c.Stream.MaxPeriodSeconds = 0
	assert.NilError(t, c.Resolve())
	assert.Equal(t, c.Port, 9000)
	assert.Equal(t, c.Stream.MaxPeriodSeconds, 2)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := DefaultConfig()
	c.Port = 70000
	c.Log.Level = "chatty"
	c.Stream.PeriodSeconds = 0
	c.DB.SSLMode = "sometimes"

	err := check.Validate(c)
	assert.ErrorContains(t, err, "port must be less than 65536")
	assert.ErrorContains(t, err, "chatty")
	assert.ErrorContains(t, err, "stream.period_seconds must be positive")
	assert.ErrorContains(t, err, "db.ssl_mode: sometimes not in")
}

func TestPrintableHidesPassword(t *testing.T) {
	c := DefaultConfig()
	c.DB.Password = "hunter2"

	bs, err := c.Printable()
	assert.NilError(t, err)
	assert.Assert(t, !strings.Contains(string(bs), "hunter2"))
	assert.Equal(t, c.DB.Password, "hunter2")

	var printed Config
	assert.NilError(t, json.Unmarshal(bs, &printed))
	assert.Equal(t, printed.DB.Password, "********")
}
