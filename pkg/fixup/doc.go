/*
Package fixup provides checksum fixups for model elements.

A fixup computes an element's value from the serialized bytes of the elements
it references. The referenced bytes are concatenated in reference order before
the checksum runs, so a fixup over ("Header", "Payload") covers both regions.

# Provided Fixups

  - CRC32: IEEE CRC-32, as used by most framed binary protocols.
  - Internet: the 16 bit one's complement sum of RFC 1071 (IP, UDP, ICMP).
  - Sum8: the low byte of the arithmetic sum of all bytes.
*/
package fixup
