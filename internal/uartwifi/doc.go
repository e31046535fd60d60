// Package uartwifi implements the TCP protocol spoken by Anycubic Mono X
// family resin printers ("uart-wifi" boards, port 6000).
//
// The protocol is line-less ASCII: a request is a verb followed by
// comma-separated arguments and CRLF (`getstatus,\r\n`), a reply is a
// comma-separated record opened by the echoed verb and closed by an `end`
// field. The printer broadcasts every reply to every open connection, so a
// read may contain several records, including records answering some other
// client. Callers therefore always filter replies by verb, and the client
// opens a fresh connection per exchange because the board only sustains a
// handful of sockets at a time.
package uartwifi
