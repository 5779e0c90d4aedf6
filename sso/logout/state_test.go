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
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	kssobridge "stash.kopano.io/kc/kssobridge"
)

func TestStateAggregatesAllLoggedOut(t *testing.T) {
	var completions int32
	var gotOutcome kssobridge.Event
	var gotResults []Result

	state := NewState("session1", []string{"a", "b", "c"}, func(outcome kssobridge.Event, results []Result) {
		atomic.AddInt32(&completions, 1)
		gotOutcome = outcome
		gotResults = results
	})

	state.Set("a", kssobridge.EventUserLoggedOut)
	state.Set("b", kssobridge.EventUserLoggedOut)
	if state.Done() {
		t.Fatal("state must not be done with an outstanding listener")
	}
	state.Set("c", kssobridge.EventUserLoggedOut)

	if !state.Done() {
		t.Fatal("state must be done after the last listener reported")
	}
	if completions != 1 {
		t.Fatalf("completion callback must run exactly once, ran %d times", completions)
	}
	if gotOutcome != kssobridge.EventUserLoggedOut {
		t.Errorf("unexpected outcome: %v", gotOutcome)
	}
	expected := []Result{
		{ListenerID: "a", Event: kssobridge.EventUserLoggedOut},
		{ListenerID: "b", Event: kssobridge.EventUserLoggedOut},
		{ListenerID: "c", Event: kssobridge.EventUserLoggedOut},
	}
	if !reflect.DeepEqual(gotResults, expected) {
		t.Errorf("unexpected results: %v", gotResults)
	}
}

func TestStateAggregatesFailure(t *testing.T) {
	var gotOutcome kssobridge.Event

	state := NewState("session1", []string{"a", "b"}, func(outcome kssobridge.Event, results []Result) {
		gotOutcome = outcome
	})

	state.Set("a", kssobridge.EventUserLoggedOut)
	state.Set("b", kssobridge.EventUserLogoutFailed)

	if gotOutcome != kssobridge.EventUserLogoutFailed {
		t.Errorf("any failed listener must fail the whole run, got %v", gotOutcome)
	}
}

func TestStateIgnoresUnknownAndDuplicateReports(t *testing.T) {
	var completions int32

	state := NewState("session1", []string{"a", "b"}, func(outcome kssobridge.Event, results []Result) {
		atomic.AddInt32(&completions, 1)
	})

	state.Set("unknown", kssobridge.EventUserLoggedOut)
	state.Set("a", kssobridge.EventUserLoggedOut)
	state.Set("a", kssobridge.EventUserLogoutFailed)
	if state.Done() {
		t.Fatal("duplicate reports must not advance the run")
	}

	state.Set("b", kssobridge.EventUserLoggedOut)
	if completions != 1 {
		t.Fatalf("completion callback must run exactly once, ran %d times", completions)
	}

	// The first report of a listener wins.
	for _, result := range state.Results() {
		if result.ListenerID == "a" && result.Event != kssobridge.EventUserLoggedOut {
			t.Errorf("duplicate report must not overwrite the first result: %v", result.Event)
		}
	}
}

func TestStateConcurrentReports(t *testing.T) {
	const listenerCount = 64

	listenerIDs := make([]string, 0, listenerCount)
	for i := 0; i < listenerCount; i++ {
		listenerIDs = append(listenerIDs, string(rune('A'+i%26))+string(rune('0'+i/26)))
	}

	var completions int32
	state := NewState("session1", listenerIDs, func(outcome kssobridge.Event, results []Result) {
		atomic.AddInt32(&completions, 1)
		if outcome != kssobridge.EventUserLoggedOut {
			t.Errorf("unexpected outcome: %v", outcome)
		}
		if len(results) != listenerCount {
			t.Errorf("unexpected result count: %d", len(results))
		}
	})

	var wg sync.WaitGroup
	for _, id := range listenerIDs {
		wg.Add(1)
		go func(listenerID string) {
			defer wg.Done()
			state.Set(listenerID, kssobridge.EventUserLoggedOut)
		}(id)
	}
	wg.Wait()

	if completions != 1 {
		t.Fatalf("completion callback must run exactly once, ran %d times", completions)
	}
}

func TestStateResultsDefaultToInProgress(t *testing.T) {
	state := NewState("session1", []string{"a", "b"}, nil)

	for _, result := range state.Results() {
		if result.Event != kssobridge.EventUserLogoutInProgress {
			t.Errorf("unreported listener must read as in progress, got %v", result.Event)
		}
	}
}
