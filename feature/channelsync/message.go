package channelsync

import (
	"time"

	"channel-publisher/core/caption"
	"channel-publisher/core/catalog"
	"channel-publisher/core/telegram"
)

// observation is what a channel message says about one published book.
type observation struct {
	key       string
	messageID int64
	title     string
	category  string
	fileName  string
	date      time.Time
}

// observe derives the identity key, title and category of msg. Messages
// without a document and without a parseable caption title carry no book.
func observe(msg telegram.Message) (observation, bool) {
	fields, parsed := caption.Parse(msg.Text)

	obs := observation{
		messageID: msg.ID,
		fileName:  msg.FileName,
		date:      msg.Date,
		category:  fields.Category,
		title:     fields.Title,
	}

	switch {
	case msg.FileName != "":
		obs.key = catalog.NormalizeKey(catalog.Stem(msg.FileName))
		if obs.title == "" {
			obs.title = catalog.Stem(msg.FileName)
		}
	case parsed && fields.Title != "":
		obs.key = catalog.NormalizeKey(fields.Title)
	}

	if obs.key == "" {
		return observation{}, false
	}
	return obs, true
}
