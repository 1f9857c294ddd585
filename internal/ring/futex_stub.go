//go:build !linux || !(amd64 || arm64)

/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package ring

import "time"

// futexWaitTimeout falls back to a plain timed sleep on platforms without a
// futex syscall; Read's bounded spin+yield+sleep schedule (spec.md §4.5:
// "implementations may use a futex-like primitive but must not require
// one") is the sole wait mechanism there. Sleeping the full interval rather
// than returning immediately avoids turning the caller's poll loop into a
// busy spin for the remainder of its timeout.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	if timeoutNs > 0 {
		time.Sleep(time.Duration(timeoutNs))
	}
	return nil
}

func futexWake(addr *uint32, n int) {}
