package zones

import (
	"encoding/json"
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
)

// fileZone is the on-disk JSON shape for a ZONES_FILE: the same fields a
// POST /zones/update body carries, grouped by camera so one file can seed
// every camera's door rectangles at once.
type fileZone struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	CameraID string  `json:"camera_id"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
}

// LoadFile reads a ZONES_FILE and replaces every camera's zone set found
// in it, grouping entries by camera_id the same way a POST /zones/update
// call does per-camera.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var entries []fileZone
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	byCamera := make(map[string][]Zone)
	for _, e := range entries {
		byCamera[e.CameraID] = append(byCamera[e.CameraID], Zone{
			ID: e.ID, Name: e.Name, CameraID: e.CameraID,
			X1: e.X1, Y1: e.Y1, X2: e.X2, Y2: e.Y2,
		})
	}
	for cam, zs := range byCamera {
		r.Update(cam, zs)
	}
	return nil
}

// WatchFile hot-reloads path on every write, logging and continuing on a
// bad file rather than tearing down the watch — an operator mid-edit of
// the zones file must never crash the service (spec.md §9 carries no
// persistence requirement for zones, only "no persistence" meaning they
// live process-wide; a watched file is an optional convenience on top).
// The returned *fsnotify.Watcher must be closed by the caller on shutdown.
func (r *Registry) WatchFile(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.LoadFile(path); err != nil {
					log.Printf("[ZONES] reload of %s failed: %v", path, err)
				} else {
					log.Printf("[ZONES] reloaded %s", path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[ZONES] watch error: %v", err)
			}
		}
	}()

	return w, nil
}
