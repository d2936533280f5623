package handlers

import "math/rand/v2"

// Short, non-technical replies for outcomes the user sees directly. A
// little variety keeps the card surface from feeling canned.
var (
	notFoundMessages = []string{
		"Nothing found, try a different wording.",
		"No luck with that one. Maybe describe the plot instead?",
		"Couldn't find it. Check the title and try again.",
	}

	unavailableMessages = []string{
		"The search is having a moment, try again in a bit.",
		"Can't reach the catalog right now, try again later.",
	}

	addedMessages = []string{
		"Added to your library.",
		"Saved it for you.",
	}

	alreadyInLibraryMessages = []string{
		"That one is already in your library.",
		"You've saved this one before.",
	}

	viewedMessages = []string{
		"Marked as viewed.",
		"Got it, you've seen this one.",
	}

	deletedMessages = []string{
		"Removed from your library.",
		"Gone. You can always search for it again.",
	}
)

func pick(messages []string) string {
	return messages[rand.IntN(len(messages))]
}
