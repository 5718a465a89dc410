// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces the burst of write events many editors
// produce for a single logical save into one reload.
const debounceInterval = 200 * time.Millisecond

// Watch reloads path whenever it changes on disk and invokes onReload with
// the newly parsed Config. It runs until stop is closed. Reload errors are
// logged and otherwise ignored — a config file left mid-edit shouldn't
// crash a running orchestrator.
func Watch(path string, logger *slog.Logger, stop <-chan struct{}, onReload func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	var debounce *time.Timer
	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed", slog.String("path", path), slog.Any("error", err))
					return
				}
				logger.Info("config reloaded", slog.String("path", path))
				onReload(cfg)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", slog.Any("error", err))
		}
	}
}
