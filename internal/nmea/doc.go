/*
Package nmea decodes NMEA 0183 sentences.

A Framer splits a byte stream into candidate lines, a Validator checks each
line's delimiter, checksum and sentence type, and the Registry hands the
fields to the decoder registered for that type, which yields a Record.
*/
package nmea
