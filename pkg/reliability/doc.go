/*
Package reliability detects retransmitted inbound AS2 messages by
Message-ID within a configurable window:

	tracker := reliability.NewDuplicateTracker(24 * time.Hour)

	if tracker.Seen(messageID) {
	    // already processed; skip re-dispatching (the inbound handler still
	    // returns a freshly signed MDN)
	}

Cleanup should run periodically (e.g. hourly) so the tracker's memory does
not grow with every distinct Message-ID ever seen.
*/
package reliability
