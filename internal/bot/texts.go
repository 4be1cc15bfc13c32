package bot

const helpText = "🎉 Welcome to the Crypto Accounting Bot! 🎉\n\n" +
	"📝 Available Commands:\n" +
	"▫️ /start - Start the bot\n" +
	"▫️ /subscribe <alias> <address> - Monitor wallet\n" +
	"   Example: /subscribe main AArPXm8J...\n" +
	"▫️ /unsubscribe <alias> - Stop monitoring\n" +
	"▫️ /list - View all monitored wallets\n" +
	"▫️ /summary [alias] - View spending summary\n" +
	"▫️ /categories [alias] - View spending by categories\n\n" +
	"💡 Tip: Use short, memorable aliases for your wallets!"

const subscribeUsageText = "⚠️ Please provide both alias and wallet address.\n\n" +
	"📝 Correct Usage:\n" +
	"▫️ /subscribe <alias> <address>\n" +
	"📱 Example:\n" +
	"▫️ /subscribe main AArPXm8JatJiuyEffuC1un2Sc835SULa4uQqDcaGpAjV"

const (
	noWalletsText       = "📭 No wallets are currently being monitored."
	selectionFailedText = "❌ Sorry, there was an error processing your selection.\n💡 Please try again."
	genericFailureText  = "❌ Something went wrong, please try again later."
)
