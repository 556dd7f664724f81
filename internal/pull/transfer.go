package pull

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"doghair/internal/logging"
)

// acceptTimeout bounds how long a per-file listener waits for the peer to
// connect before the file is abandoned. A var, not a const, so tests can
// shrink it instead of waiting the full 5s.
var acceptTimeout = 5 * time.Second

// receiveFile accepts exactly one connection on lis, streams its bytes into
// destDir/<peerID>_<base of filename> (see safeName), and reports completion (or failure) on done. It never
// emits true unless the peer closed the socket cleanly after a fully
// written file.
func receiveFile(lis net.Listener, destDir, peerID, filename string, done chan<- fileResult) {
	log := logging.For("pull").WithFields(map[string]any{"peer": peerID, "file": filename})

	defer lis.Close()

	if dl, ok := lis.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Now().Add(acceptTimeout))
	}

	conn, err := lis.Accept()
	if err != nil {
		log.WithError(err).Error("accept timed out, abandoning file")
		done <- fileResult{peerID: peerID, filename: filename, ok: false}
		return
	}
	defer conn.Close()

	path := filepath.Join(destDir, safeName(peerID, filename))
	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Error("could not create destination file")
		done <- fileResult{peerID: peerID, filename: filename, ok: false}
		return
	}

	if _, err := io.Copy(f, conn); err != nil {
		log.WithError(err).Error("read error during transfer, file abandoned")
		f.Close()
		os.Remove(path)
		done <- fileResult{peerID: peerID, filename: filename, ok: false}
		return
	}

	if err := f.Sync(); err != nil {
		log.WithError(err).Warn("fsync failed on received file")
	}
	f.Close()

	log.Debug("file retrieved")
	done <- fileResult{peerID: peerID, filename: filename, ok: true}
}

func safeName(peerID, filename string) string {
	return fmt.Sprintf("%s_%s", peerID, filepath.Base(filename))
}

type fileResult struct {
	peerID   string
	filename string
	ok       bool
}
