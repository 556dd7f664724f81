// Package distributor implements the Code Distributor (component C2): it
// ships the collector's packaged image out to every peer's Docker daemon
// via github.com/docker/docker/client, the opposite direction of a normal
// "pull a job image in" flow. No version check is made. Distribute is
// best-effort: its errors never gate whether a peer is later admitted to
// the roster.
package distributor

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"

	"doghair/internal/logging"
)

// Distributor ships (and later removes) the collector image on every peer.
type Distributor struct {
	// Image is the local tag of the collector image to distribute.
	Image string
	// DockerHost builds the reachable Docker daemon address for a peer,
	// e.g. "tcp://<peer-ip>:2375".
	DockerHost func(peerAddr string) string
}

// Distribute saves the local collector image and loads it into every
// peer's Docker daemon. Per-peer failures are logged and collected, never
// aborting the batch -- distribution happens once, before the first
// init_all, and a peer that fails to receive the image simply will not
// come up when init_all reaches it.
func (d *Distributor) Distribute(ctx context.Context, peers []string) []error {
	log := logging.For("distributor")
	var errs []error

	local, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return []error{fmt.Errorf("local docker client: %w", err)}
	}
	defer local.Close()

	for _, peerAddr := range peers {
		if err := d.distributeOne(ctx, local, peerAddr); err != nil {
			log.WithField("peer", peerAddr).WithError(err).Error("failed to distribute collector image")
			errs = append(errs, fmt.Errorf("%s: %w", peerAddr, err))
			continue
		}
		log.WithField("peer", peerAddr).Info("collector image distributed")
	}
	return errs
}

func (d *Distributor) distributeOne(ctx context.Context, local *client.Client, peerAddr string) error {
	remote, err := client.NewClientWithOpts(client.WithHost(d.DockerHost(peerAddr)), client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("remote docker client: %w", err)
	}
	defer remote.Close()

	// Purge any prior copy before installing the new one.
	_, _ = remote.ImageRemove(ctx, d.Image, types.ImageRemoveOptions{Force: true})

	tar, err := local.ImageSave(ctx, []string{d.Image})
	if err != nil {
		return fmt.Errorf("save local image: %w", err)
	}
	defer tar.Close()

	resp, err := remote.ImageLoad(ctx, tar, false)
	if err != nil {
		return fmt.Errorf("load remote image: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Unload removes the collector image from every peer, best-effort, with no
// retries -- invoked on coordinated shutdown and on terminal coordinator
// crash.
func (d *Distributor) Unload(ctx context.Context, peers []string) []error {
	log := logging.For("distributor")
	var errs []error

	for _, peerAddr := range peers {
		remote, err := client.NewClientWithOpts(client.WithHost(d.DockerHost(peerAddr)), client.WithAPIVersionNegotiation())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", peerAddr, err))
			continue
		}
		if _, err := remote.ImageRemove(ctx, d.Image, types.ImageRemoveOptions{Force: true}); err != nil {
			log.WithField("peer", peerAddr).WithError(err).Warn("image unload failed")
			errs = append(errs, fmt.Errorf("%s: %w", peerAddr, err))
		}
		remote.Close()
	}
	return errs
}
