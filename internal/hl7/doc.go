// Package hl7 owns the HL7 v2 text model.
//
// Ownership boundary:
// - delimiter profile (separators, escape character, null token, version)
// - message/segment/field parse and serialize, including escaping
// - acknowledgment (ACK) derivation from a request message
// - convenience constructors for headers and messages
//
// Field numbering follows HL7: fields are 1-based and, for MSH, field 1 is
// the field separator itself and field 2 the encoding characters.
package hl7
