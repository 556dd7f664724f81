// Package mesh implements the Cluster Mesh Probe (component C1): the
// startup gate that waits for an external "cluster is fully meshed" flag
// before any remote work is attempted.
package mesh

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"doghair/internal/logging"
)

// MaxAttempts tries with RetryDelay between them make the probe fail
// fatally after about 10s, inside the 15s bound. RetryDelay is a var, not
// a const, so tests can shrink it instead of taking the full 10s.
const MaxAttempts = 3

var RetryDelay = 5 * time.Second

// ErrNotMeshed is returned when the cluster never reports meshed within
// MaxAttempts tries.
var ErrNotMeshed = fmt.Errorf("cluster can not be meshed")

// FlagFunc reads the out-of-scope mesh service's published flag. Tests
// substitute a closure; production uses EnvFlag.
type FlagFunc func() (bool, error)

// EnvFlag reads DOGHAIR_MESH_READY from the process environment, standing
// in for whatever out-of-scope mesh service normally publishes this flag.
func EnvFlag() (bool, error) {
	v, ok := os.LookupEnv("DOGHAIR_MESH_READY")
	if !ok {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// Probe retries flag up to MaxAttempts times, sleeping RetryDelay between
// tries, and returns ErrNotMeshed if the cluster never reports meshed.
func Probe(flag FlagFunc) error {
	log := logging.For("mesh")
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		ok, err := flag()
		if err != nil {
			log.WithError(err).Warn("mesh flag read failed")
		} else if ok {
			log.Info("cluster meshed")
			return nil
		}
		if attempt < MaxAttempts {
			log.Debugf("cluster not meshed yet, attempt %d/%d", attempt, MaxAttempts)
			time.Sleep(RetryDelay)
		}
	}
	log.Error(ErrNotMeshed.Error())
	return ErrNotMeshed
}
