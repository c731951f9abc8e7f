package summarizer

import "fmt"

// openChannelPrompt 多作者频道：第三人称，保留链接并标注分享者
const openChannelPrompt = `Please summarize the following Discord messages and conversation threads from the "%s" channel:

<messages>
%s
</messages>

<threads>
%s
</threads>

Write the summary in third person, e.g. "User X shared a video about...", and include any links used in the messages. Be sure the links are in Markdown format and include the username where you have it.

Make the summary for each message a separate paragraph. Do not include any additional commentary at the end.
`

// defaultPrompt 单作者频道：第一人称
const defaultPrompt = `Please summarize the following Discord messages and conversation threads:

<messages>
%s
</messages>

<threads>
%s
</threads>

Write the summary in first person, e.g. "I watched a video about...", and include any links used in the messages. Be sure the links are in Markdown format.

Make the summary for each message a separate paragraph. Do not include any additional commentary at the end.
`

func buildPrompt(channelName string, admitAllAuthors bool, messagesText, threadsText string) string {
	if admitAllAuthors {
		return fmt.Sprintf(openChannelPrompt, channelName, messagesText, threadsText)
	}
	return fmt.Sprintf(defaultPrompt, messagesText, threadsText)
}
