// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package persistence

import "fmt"

// Build constructs a Snapshotter for the selector kvserver was configured
// with. "none" returns a nil Snapshotter; callers must check for nil and
// skip the snapshot ticker entirely rather than calling Snapshot on it.
func Build(selector, redisAddr, filePath string) (Snapshotter, error) {
	switch selector {
	case "", "none":
		return nil, nil
	case "logging":
		return LoggingSnapshotter{}, nil
	case "redis":
		if redisAddr == "" {
			return nil, fmt.Errorf("persistence: redis snapshotter requires a redis_addr")
		}
		return NewRedisSnapshotter(redisAddr, ""), nil
	case "file":
		if filePath == "" {
			return nil, fmt.Errorf("persistence: file snapshotter requires a snapshot_path")
		}
		return NewFileSnapshotter(filePath)
	default:
		return nil, fmt.Errorf("persistence: unknown snapshotter %q", selector)
	}
}
