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
	"context"

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// Dispatch starts one goroutine per provided listener, each delivering the
// on remove event for the provided TGT and reporting its terminal result to
// the accociated State. Workers are not cancellable once started, the
// provided context only scopes the listener calls themselves.
func (state *State) Dispatch(ctx context.Context, listeners []tgt.Listener, t *tgt.TGT, logger logrus.FieldLogger) {
	for _, listener := range listeners {
		go func(listener tgt.Listener) {
			err := listener.ProcessTGTEvent(ctx, tgt.EventOnRemove, t)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"listener": listener.ID(),
					"run":      state.id,
				}).Debugln("logout listener reported error")
			}
			state.Set(listener.ID(), tgt.EventResult(err))
		}(listener)
	}
}
