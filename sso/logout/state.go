/*
 * Copyright 2020 Kopano and its licensors
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

package logout

import (
	"sync"

	uuid "github.com/satori/go.uuid"

	kssobridge "stash.kopano.io/kc/kssobridge"
)

// Result is the terminal outcome reported by a single TGT event listener
// during a local logout fan-out.
type Result struct {
	ListenerID string
	Event      kssobridge.Event
}

// State aggregates the results of one local logout fan-out run. Every
// listener reports exactly one terminal result through Set. Until a listener
// reports, its recorded result is USER_LOGOUT_IN_PROGRESS so concurrent
// readers see a safe default. When the last outstanding listener reports,
// the session wide outcome is computed and handed to the completion callback
// exactly once.
type State struct {
	mutex sync.Mutex

	id        string
	sessionID string

	order       []string
	results     map[string]kssobridge.Event
	outstanding int
	done        bool

	complete func(outcome kssobridge.Event, results []Result)
}

// NewState creates a new fan-out State for the provided session and listener
// ids. The provided complete callback runs on the goroutine of whichever
// listener reports last.
func NewState(sessionID string, listenerIDs []string, complete func(outcome kssobridge.Event, results []Result)) *State {
	state := &State{
		id:        uuid.NewV4().String(),
		sessionID: sessionID,

		order:       make([]string, 0, len(listenerIDs)),
		results:     make(map[string]kssobridge.Event),
		outstanding: len(listenerIDs),

		complete: complete,
	}
	for _, id := range listenerIDs {
		state.order = append(state.order, id)
		state.results[id] = kssobridge.EventUserLogoutInProgress
	}

	return state
}

// ID returns the unique id of the accociated fan-out run.
func (state *State) ID() string {
	return state.id
}

// SessionID returns the id of the session the accociated fan-out run belongs
// to.
func (state *State) SessionID() string {
	return state.sessionID
}

// Set records the terminal result of the listener with the provided id.
// Unknown listeners and second reports from the same listener are ignored.
// When the last outstanding listener reports, Set computes the session wide
// outcome and invokes the completion callback before returning.
func (state *State) Set(listenerID string, event kssobridge.Event) {
	state.mutex.Lock()

	current, ok := state.results[listenerID]
	if !ok || current != kssobridge.EventUserLogoutInProgress || state.done {
		state.mutex.Unlock()
		return
	}

	state.results[listenerID] = event
	state.outstanding--
	if state.outstanding > 0 {
		state.mutex.Unlock()
		return
	}

	state.done = true
	outcome := kssobridge.EventUserLoggedOut
	results := make([]Result, 0, len(state.order))
	for _, id := range state.order {
		result := state.results[id]
		if result != kssobridge.EventUserLoggedOut {
			outcome = kssobridge.EventUserLogoutFailed
		}
		results = append(results, Result{
			ListenerID: id,
			Event:      result,
		})
	}
	complete := state.complete
	state.mutex.Unlock()

	if complete != nil {
		complete(outcome, results)
	}
}

// Done returns true when every listener of the accociated fan-out run has
// reported a terminal result.
func (state *State) Done() bool {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	return state.done
}

// Results returns a snapshot of the current per listener results in
// registration order.
func (state *State) Results() []Result {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	results := make([]Result, 0, len(state.order))
	for _, id := range state.order {
		results = append(results, Result{
			ListenerID: id,
			Event:      state.results[id],
		})
	}

	return results
}
