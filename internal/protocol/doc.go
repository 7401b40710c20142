// Package protocol implements the two LightwaveRF wire protocols.
//
// Every message, inbound or outbound, is a small comparable value type
// implementing Message. Outbound messages also implement Command. Both
// protocol generations share the same MessageType tags and the same Codec
// interface, so the delivery queue and the hub connections treat them
// uniformly.
//
// # Legacy Link (UDP)
//
// The original LightwaveRF Link accepts one ASCII line per datagram on UDP
// port 9760 and broadcasts replies on port 9761. Each line starts with a
// three digit message ID that the hub echoes back:
//
//	123,!R1D2F1          switch room 1 device 2 on
//	123,!R1D2FdP16       dim to level 16 of 32
//	123,OK               acknowledgment
//	123,ERR,2,"..."      not yet registered
//	*!{"serial":...}     heating status report
//
// TextCodec decodes these lines with one anchored regular expression per
// message type, after a substring pre-check picks the candidate.
//
// # Link Plus (WebSocket)
//
// The Link Plus speaks JSON envelopes over a WebSocket:
//
//	{"version":1,"senderId":"...","transactionId":7,"direction":"request",
//	 "class":"feature","operation":"write",
//	 "items":[{"itemId":7,"payload":{"featureId":"...","value":1}}]}
//
// Responses carry the same transactionId. Feature events arrive with
// direction "notification" and may carry several items.
//
// # Usage Example
//
//	var ids protocol.TextIDs
//	codec := protocol.TextCodec{}
//
//	pkt, err := codec.Encode(protocol.OnOffCommand{ID: ids.Next(), Room: 1, Device: 2, On: true})
//	if err != nil {
//	    return err
//	}
//	conn.Write(pkt.Data)
//
//	msg, err := codec.Decode(reply)
//	var decErr *protocol.DecodeError
//	if errors.As(err, &decErr) {
//	    // log and discard
//	}
//
// # Dimming
//
// The hub dims on a 0-32 scale. PercentToDevice and DeviceToPercent convert
// to and from percentages; the conversion is lossy. A dim level of zero is
// sent as the off function.
package protocol
