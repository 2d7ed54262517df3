// Package queue keeps the collaborative queue in step with a hive.
//
// [Channel] owns the push subscription: a websocket to /ws/music?hiveId=<id> that reconnects with
// capped exponential backoff and always resubscribes to the same hive. Teardown is synchronous, so a
// new subscription never overlaps the old one.
//
// [Sync] turns inbound envelopes into store actions and sends local mutations to the music service.
// Inside a hive the push channel is the only writer of queue state; without one, a successful REST
// call is followed by the same mutation applied locally.
package queue
