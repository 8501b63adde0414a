// Package telegram talks to the publishing channel.
//
// Two independent clients are provided:
//
//   - BotClient publishes through the Bot API (sendDocument, sendMessage)
//     with go-telegram-bot-api and checks connectivity with getMe. Library
//     errors are mapped to *APIError, which carries the flood-wait.
//   - PreviewReader reads the channel history from the public web preview
//     (https://t.me/s/<channel>), page by page, newest first.
//
// The bot cannot read a channel's history, which is why reading goes
// through the preview. Only public channels can be synchronized.
//
// # Channel identifiers
//
// NormalizeChannel accepts "@name", "name", "t.me/name" and
// "https://t.me/name" and returns "@name". Numeric chat ids are returned
// unchanged.
package telegram
