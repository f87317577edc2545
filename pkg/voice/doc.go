// Package voice runs the unit's hands-free interaction loop.
//
// The Listener is a two-state machine over a microphone stream and a
// streaming recognizer:
//
//   - WakeListening (initial): every chunk is fed to the recognizer. A
//     final or partial transcript containing a wake word moves the loop to
//     CommandListening, unless the speech gate is active. Audio heard while
//     the unit is speaking is discarded and the recognizer reset, so the
//     unit never wakes itself up.
//
//   - CommandListening: the stream is reopened after a short spoken
//     acknowledgment and audio is fed to a freshly reset recognizer until a
//     non-empty final transcript arrives or the transcript stops growing for
//     a fixed number of chunks. The text goes to the command handler, then
//     the loop returns to WakeListening.
//
// Audio faults never end the loop. A device fault (for example a USB
// microphone that has not enumerated yet after a cold boot) waits a short
// backoff and reopens the stream through the SourceOpener, which re-queries
// the hardware each time.
//
// # Usage
//
//	l, err := voice.NewListener(voice.DefaultConfig(), voice.Deps{
//	    Open:       opener,
//	    Recognizer: rec,
//	    Gate:       speaker.Gate(),
//	    Speaker:    speaker,
//	    Handler: func(ctx context.Context, text string) {
//	        session.Process(ctx, text, true)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	go l.Run(ctx)
//
//	// Keypad push-to-talk
//	l.PushToTalk()
package voice
