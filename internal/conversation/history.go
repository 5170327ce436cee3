package conversation

// TailWindow returns the trailing slice of msgs covering at most pairLimit
// user+assistant pairs. The window opens at a user message, so the provider
// never sees a conversation that starts mid-exchange. pairLimit <= 0 keeps
// everything.
func TailWindow(msgs []Message, pairLimit int) []Message {
	if pairLimit <= 0 || len(msgs) == 0 {
		return msgs
	}

	pairs := 0
	start := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			pairs++
			if pairs == pairLimit {
				start = i
				break
			}
		}
	}
	return msgs[start:]
}
